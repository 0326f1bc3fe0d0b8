package stock

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LotService manages lot batch registration, quarantine and expiry. Lot
// quantities themselves are maintained by the ledger as movements post; this
// service covers the lifecycle operations that are not tied to a movement.
type LotService struct {
	txScope        TransactionScope
	lotRepo        stock.LotBatchRepository
	movementRepo   stock.StockMovementRepository
	eventPublisher shared.EventPublisher
	clock          shared.Clock
	logger         *zap.Logger
}

// NewLotService creates a new LotService
func NewLotService(
	txScope TransactionScope,
	lotRepo stock.LotBatchRepository,
	movementRepo stock.StockMovementRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *LotService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LotService{
		txScope:      txScope,
		lotRepo:      lotRepo,
		movementRepo: movementRepo,
		clock:        clock,
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LotService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *LotService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// RegisterLot registers a lot explicitly ahead of its first receipt. Posting
// an inbound movement with an unknown lot number registers the lot implicitly;
// this call exists for flows that know the lot's dates and supplier up front.
func (s *LotService) RegisterLot(ctx context.Context, tenantID uuid.UUID, req RegisterLotRequest) (*LotBatchResponse, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}

	existing, err := s.lotRepo.FindByLotNumber(ctx, tenantID, req.ProductID, req.LotNumber)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			"Lot "+req.LotNumber+" is already registered for this product")
	}

	batch, err := stock.NewLotBatch(tenantID, req.ProductID, req.LotNumber, req.Quantity, req.ManufacturedDate, req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	batch.SupplierID = req.SupplierID
	batch.SupplierLotNumber = req.SupplierLotNumber
	batch.UnitOfMeasure = req.UnitOfMeasure

	if err := s.lotRepo.Save(ctx, batch); err != nil {
		return nil, err
	}

	response := ToLotBatchResponse(batch, s.clock.Now())
	return &response, nil
}

// QuarantineLot blocks a lot from allocation
func (s *LotService) QuarantineLot(ctx context.Context, tenantID, lotID uuid.UUID, reason string) (*LotBatchResponse, error) {
	var batch *stock.LotBatch
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			batch, err = repos.LotRepo().FindByIDForTenant(ctx, tenantID, lotID)
			if err != nil {
				return err
			}
			if err := batch.Quarantine(reason); err != nil {
				return err
			}
			return repos.LotRepo().SaveWithLock(ctx, batch)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, stock.NewLotQuarantinedEvent(batch))
	s.logger.Info("Quarantined lot",
		zap.String("lot_number", batch.LotNumber),
		zap.String("product_id", batch.ProductID.String()),
		zap.String("reason", reason),
	)

	response := ToLotBatchResponse(batch, s.clock.Now())
	return &response, nil
}

// ReleaseLotFromQuarantine returns a quarantined lot to allocation
func (s *LotService) ReleaseLotFromQuarantine(ctx context.Context, tenantID, lotID uuid.UUID) (*LotBatchResponse, error) {
	var batch *stock.LotBatch
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			batch, err = repos.LotRepo().FindByIDForTenant(ctx, tenantID, lotID)
			if err != nil {
				return err
			}
			if err := batch.ReleaseFromQuarantine(); err != nil {
				return err
			}
			return repos.LotRepo().SaveWithLock(ctx, batch)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Released lot from quarantine", zap.String("lot_number", batch.LotNumber))

	response := ToLotBatchResponse(batch, s.clock.Now())
	return &response, nil
}

// RecallLot recalls a lot permanently. Recall does not touch stock line
// quantities; the physical disposal is posted as outgoing movements against
// the affected lines.
func (s *LotService) RecallLot(ctx context.Context, tenantID, lotID uuid.UUID, reason string) (*LotBatchResponse, error) {
	var batch *stock.LotBatch
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			batch, err = repos.LotRepo().FindByIDForTenant(ctx, tenantID, lotID)
			if err != nil {
				return err
			}
			if err := batch.Recall(reason); err != nil {
				return err
			}
			return repos.LotRepo().SaveWithLock(ctx, batch)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Recalled lot",
		zap.String("lot_number", batch.LotNumber),
		zap.String("product_id", batch.ProductID.String()),
		zap.String("reason", reason),
	)

	response := ToLotBatchResponse(batch, s.clock.Now())
	return &response, nil
}

// ExpiredLotStats contains statistics about one expiry sweep pass
type ExpiredLotStats struct {
	TotalFound  int       `json:"total_found"`
	Marked      int       `json:"marked"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// MarkExpiredLots finds lots past their expiry date and transitions them to
// Expired, one transaction per lot
func (s *LotService) MarkExpiredLots(ctx context.Context, tenantID uuid.UUID) (*ExpiredLotStats, error) {
	now := s.clock.Now()
	stats := &ExpiredLotStats{ProcessedAt: now}

	expired, err := s.lotRepo.FindExpired(ctx, tenantID, now, shared.Filter{})
	if err != nil {
		s.logger.Error("Failed to find expired lots", zap.Error(err))
		return nil, err
	}

	stats.TotalFound = len(expired)
	for i := range expired {
		err := withConcurrencyRetry(func() error {
			return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
				batch, err := repos.LotRepo().FindByIDForTenant(ctx, tenantID, expired[i].ID)
				if err != nil {
					return err
				}
				if err := batch.MarkExpired(now); err != nil {
					return err
				}
				return repos.LotRepo().SaveWithLock(ctx, batch)
			})
		})
		if err != nil {
			s.logger.Error("Failed to mark lot expired",
				zap.String("lot_number", expired[i].LotNumber),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Marked++
	}

	if stats.TotalFound > 0 {
		s.logger.Info("Completed lot expiry sweep",
			zap.Int("found", stats.TotalFound),
			zap.Int("marked", stats.Marked),
			zap.Int("failed", stats.Failed),
		)
	}

	return stats, nil
}

// GetLot retrieves a lot by ID
func (s *LotService) GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (*LotBatchResponse, error) {
	batch, err := s.lotRepo.FindByIDForTenant(ctx, tenantID, lotID)
	if err != nil {
		return nil, err
	}
	response := ToLotBatchResponse(batch, s.clock.Now())
	return &response, nil
}

// GetLotByNumber retrieves a lot by product and lot number
func (s *LotService) GetLotByNumber(ctx context.Context, tenantID, productID uuid.UUID, lotNumber string) (*LotBatchResponse, error) {
	batch, err := s.lotRepo.FindByLotNumber(ctx, tenantID, productID, lotNumber)
	if err != nil {
		return nil, err
	}
	response := ToLotBatchResponse(batch, s.clock.Now())
	return &response, nil
}

// ListLotsByProduct retrieves all lots for a product
func (s *LotService) ListLotsByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]LotBatchResponse, error) {
	batches, err := s.lotRepo.FindByProduct(ctx, tenantID, productID, filter)
	if err != nil {
		return nil, err
	}
	return s.toResponses(batches), nil
}

// ListReservableLots retrieves active lots with available quantity for a
// product, earliest expiry first
func (s *LotService) ListReservableLots(ctx context.Context, tenantID, productID uuid.UUID) ([]LotBatchResponse, error) {
	batches, err := s.lotRepo.FindReservable(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return s.toResponses(batches), nil
}

func (s *LotService) toResponses(batches []stock.LotBatch) []LotBatchResponse {
	now := s.clock.Now()
	responses := make([]LotBatchResponse, len(batches))
	for i := range batches {
		responses[i] = ToLotBatchResponse(&batches[i], now)
	}
	return responses
}

// TraceLot returns the full movement history of a lot, oldest first. This is
// the recall question: where did this lot go.
func (s *LotService) TraceLot(ctx context.Context, tenantID, productID uuid.UUID, lotNumber string, filter shared.Filter) ([]MovementResponse, error) {
	if _, err := s.lotRepo.FindByLotNumber(ctx, tenantID, productID, lotNumber); err != nil {
		return nil, err
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "occurred_at"
		filter.OrderDir = "asc"
	}
	if filter.Filters == nil {
		filter.Filters = map[string]interface{}{}
	}
	filter.Filters["lot_number"] = lotNumber
	movements, err := s.movementRepo.FindByProduct(ctx, tenantID, productID, filter)
	if err != nil {
		return nil, err
	}
	return ToMovementResponses(movements), nil
}
