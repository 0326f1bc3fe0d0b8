package stock

import (
	"context"
	"errors"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// maxConcurrencyRetries bounds automatic retries of the read-check-write
	// sequence when an optimistic version check fails. Beyond this the
	// conflict surfaces to the caller as a transient failure.
	maxConcurrencyRetries = 3
)

// LedgerService posts and reverses stock movements. Every posting executes
// the read-check-write sequence against the target stock line inside a single
// transaction; contention on the same line is detected by the line's
// optimistic version and retried a bounded number of times.
type LedgerService struct {
	txScope        TransactionScope
	lineRepo       stock.StockLineRepository
	movementRepo   stock.StockMovementRepository
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
	clock          shared.Clock
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	lineRepo stock.StockLineRepository,
	movementRepo stock.StockMovementRepository,
	clock shared.Clock,
) *LedgerService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &LedgerService{
		txScope:      txScope,
		lineRepo:     lineRepo,
		movementRepo: movementRepo,
		clock:        clock,
	}
}

// SetIdempotencyStore sets the idempotency store guarding duplicate postings
func (s *LedgerService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// withConcurrencyRetry re-runs fn when the transaction failed on an
// optimistic version conflict. Any other error surfaces immediately.
func withConcurrencyRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxConcurrencyRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}

func (s *LedgerService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	// Publish failures are the bus's problem; the ledger rows are committed
	_ = s.eventPublisher.Publish(ctx, events...)
}

// PostMovement posts a single stock movement and returns the immutable record.
// Incoming and TransferIn raise the line's current quantity and fold the
// receipt cost into the weighted average; Outgoing and TransferOut lower it,
// refusing to cut below the reserved floor unless the request is flagged as a
// physical-count correction.
func (s *LedgerService) PostMovement(ctx context.Context, tenantID uuid.UUID, req PostMovementRequest) (*MovementResponse, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}
	if !req.MovementType.IsValid() || req.MovementType == stock.MovementTypeReversal {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Movement type must be one of INCOMING, OUTGOING, TRANSFER_IN, TRANSFER_OUT")
	}
	if req.ProductID == uuid.Nil || req.WarehouseID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product and warehouse IDs are required")
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if req.UnitCost.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unit cost cannot be negative")
	}

	idempotencyKey := ""
	if req.IdempotencyKey != "" && s.idempotency != nil {
		idempotencyKey = "movement:" + tenantID.String() + ":" + req.IdempotencyKey
		seen, err := s.idempotency.IsProcessed(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "A movement with this idempotency key was already posted")
		}
	}

	var (
		movement *stock.StockMovement
		line     *stock.StockLine
	)
	inbound := req.MovementType == stock.MovementTypeIncoming || req.MovementType == stock.MovementTypeTransferIn
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			// An outbound movement must name a known lot; check before
			// GetOrCreate so no empty line is minted for the coordinate
			if req.LotNumber != "" && !inbound {
				if _, err := repos.LotRepo().FindByLotNumber(ctx, tenantID, req.ProductID, req.LotNumber); err != nil {
					return err
				}
			}

			var err error
			line, err = repos.LineRepo().GetOrCreate(ctx, tenantID, req.ProductID, req.WarehouseID, req.LocationID, req.LotNumber)
			if err != nil {
				return err
			}
			if err := line.CheckUnit(req.UnitOfMeasure); err != nil {
				return err
			}

			balanceBefore := line.CurrentQuantity

			unitCost := req.UnitCost
			if inbound {
				if err := line.Receive(req.Quantity, req.UnitCost); err != nil {
					return err
				}
			} else {
				// Outbound is valued at the line's weighted average, never
				// at a caller-supplied cost
				unitCost = line.UnitCost
				issue := line.Issue
				if req.Correction {
					issue = line.IssueCorrection
				}
				if err := issue(req.Quantity); err != nil {
					return err
				}
			}

			if req.LotNumber != "" {
				if err := s.applyLotDelta(ctx, repos, tenantID, req, inbound); err != nil {
					return err
				}
			}

			number, err := repos.SequenceRepo().Next(ctx, tenantID, req.MovementType.NumberPrefix())
			if err != nil {
				return err
			}

			movement, err = stock.NewStockMovement(
				tenantID, number, req.MovementType,
				line.ID, req.ProductID, req.WarehouseID,
				req.Quantity, unitCost,
				balanceBefore, line.CurrentQuantity,
				s.clock.Now(),
			)
			if err != nil {
				return err
			}
			if req.LocationID != nil {
				movement.WithLocation(*req.LocationID)
			}
			if req.LotNumber != "" {
				movement.WithLot(req.LotNumber)
			}
			if req.SerialNumber != "" {
				movement.WithSerial(req.SerialNumber)
			}
			if req.ReferenceType != "" || req.ReferenceNumber != "" || req.ReferenceID != nil {
				movement.WithReference(stock.ReferenceDocument{
					Type:   req.ReferenceType,
					Number: req.ReferenceNumber,
					ID:     req.ReferenceID,
				})
			}
			if req.Reason != "" {
				movement.WithReason(req.Reason)
			}
			if req.UserID != nil {
				movement.WithUser(*req.UserID)
			}
			movement.WithUnit(line.UnitOfMeasure)

			if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
				return err
			}
			return repos.MovementRepo().Create(ctx, movement)
		})
	})
	if err != nil {
		return nil, err
	}

	// Marked only after the commit so a failed posting can be retried with
	// the same key
	if idempotencyKey != "" {
		_, _ = s.idempotency.MarkProcessed(ctx, idempotencyKey, shared.DefaultIdempotencyTTL)
	}

	s.publish(ctx, stock.NewMovementPostedEvent(line, movement))

	response := ToMovementResponse(movement)
	return &response, nil
}

// applyLotDelta keeps the lot's quantity in step with a lot-scoped movement,
// inside the same transaction as the line update. An inbound movement for an
// unknown lot registers it implicitly; an outbound one fails with NOT_FOUND.
func (s *LedgerService) applyLotDelta(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, req PostMovementRequest, inbound bool) error {
	lot, err := repos.LotRepo().FindByLotNumber(ctx, tenantID, req.ProductID, req.LotNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) && inbound {
			lot, err = stock.NewLotBatch(tenantID, req.ProductID, req.LotNumber, req.Quantity, nil, nil)
			if err != nil {
				return err
			}
			lot.UnitOfMeasure = req.UnitOfMeasure
			return repos.LotRepo().Save(ctx, lot)
		}
		return err
	}

	if inbound {
		if err := lot.Receive(req.Quantity); err != nil {
			return err
		}
	} else {
		if err := lot.Consume(req.Quantity); err != nil {
			return err
		}
	}
	return repos.LotRepo().SaveWithLock(ctx, lot)
}

// ReverseMovement posts the mathematical inverse of an earlier movement as a
// new Reversal record referencing the original. The original is never edited.
// A movement can be reversed at most once, and a reversal cannot itself be
// reversed.
func (s *LedgerService) ReverseMovement(ctx context.Context, tenantID, movementID uuid.UUID, reason string, userID *uuid.UUID) (*MovementResponse, error) {
	if reason == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Reversal reason is required")
	}

	var (
		reversal *stock.StockMovement
		original *stock.StockMovement
		line     *stock.StockLine
	)
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			original, err = repos.MovementRepo().FindByIDForTenant(ctx, tenantID, movementID)
			if err != nil {
				return err
			}
			if _, err := original.InverseType(); err != nil {
				return err
			}
			if existing, err := repos.MovementRepo().FindReversalOf(ctx, tenantID, original.ID); err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return err
				}
			} else if existing != nil {
				return shared.NewDomainError("ALREADY_EXISTS", "Movement was already reversed by "+existing.MovementNumber)
			}

			line, err = repos.LineRepo().FindByID(ctx, original.StockLineID)
			if err != nil {
				return err
			}

			balanceBefore := line.CurrentQuantity
			if original.IsInbound() {
				// Undoing a receipt takes the stock back out
				if err := line.Issue(original.Quantity); err != nil {
					return err
				}
			} else {
				// Undoing an issue puts the stock back at the cost it left with
				if err := line.Receive(original.Quantity, original.UnitCost); err != nil {
					return err
				}
			}

			if original.LotNumber != "" {
				lot, err := repos.LotRepo().FindByLotNumber(ctx, tenantID, original.ProductID, original.LotNumber)
				if err != nil {
					return err
				}
				if original.IsInbound() {
					err = lot.Consume(original.Quantity)
				} else {
					err = lot.Receive(original.Quantity)
				}
				if err != nil {
					return err
				}
				if err := repos.LotRepo().SaveWithLock(ctx, lot); err != nil {
					return err
				}
			}

			number, err := repos.SequenceRepo().Next(ctx, tenantID, stock.MovementTypeReversal.NumberPrefix())
			if err != nil {
				return err
			}

			reversal, err = stock.NewStockMovement(
				tenantID, number, stock.MovementTypeReversal,
				line.ID, original.ProductID, original.WarehouseID,
				original.Quantity, original.UnitCost,
				balanceBefore, line.CurrentQuantity,
				s.clock.Now(),
			)
			if err != nil {
				return err
			}
			reversal.ReversalOfID = &original.ID
			if original.LocationID != nil {
				reversal.WithLocation(*original.LocationID)
			}
			if original.LotNumber != "" {
				reversal.WithLot(original.LotNumber)
			}
			if original.SerialNumber != "" {
				reversal.WithSerial(original.SerialNumber)
			}
			reversal.WithReason(reason)
			if userID != nil {
				reversal.WithUser(*userID)
			}
			reversal.WithUnit(original.UnitOfMeasure)
			if !original.Reference.IsZero() {
				reversal.WithReference(original.Reference)
			}

			if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
				return err
			}
			return repos.MovementRepo().Create(ctx, reversal)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, stock.NewMovementReversedEvent(line, original, reversal))

	response := ToMovementResponse(reversal)
	return &response, nil
}

// GetMovement retrieves a movement by ID
func (s *LedgerService) GetMovement(ctx context.Context, tenantID, movementID uuid.UUID) (*MovementResponse, error) {
	movement, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	response := ToMovementResponse(movement)
	return &response, nil
}

// GetMovementByNumber retrieves a movement by its document number
func (s *LedgerService) GetMovementByNumber(ctx context.Context, tenantID uuid.UUID, movementNumber string) (*MovementResponse, error) {
	movement, err := s.movementRepo.FindByMovementNumber(ctx, tenantID, movementNumber)
	if err != nil {
		return nil, err
	}
	response := ToMovementResponse(movement)
	return &response, nil
}

// ListMovements retrieves movement history with filtering and pagination
func (s *LedgerService) ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementListFilter) ([]MovementResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "occurred_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if filter.ProductID != nil {
		domainFilter.Filters["product_id"] = *filter.ProductID
	}
	if filter.WarehouseID != nil {
		domainFilter.Filters["warehouse_id"] = *filter.WarehouseID
	}
	if filter.MovementType != nil {
		domainFilter.Filters["movement_type"] = string(*filter.MovementType)
	}
	if filter.LotNumber != "" {
		domainFilter.Filters["lot_number"] = filter.LotNumber
	}

	var movements []stock.StockMovement
	var err error
	if filter.StartDate != nil && filter.EndDate != nil {
		movements, err = s.movementRepo.FindByDateRange(ctx, tenantID, *filter.StartDate, *filter.EndDate, domainFilter)
	} else {
		movements, err = s.movementRepo.FindForTenant(ctx, tenantID, domainFilter)
	}
	if err != nil {
		return nil, 0, err
	}

	total, err := s.movementRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToMovementResponses(movements), total, nil
}

// GetMovementsByReference retrieves all movements posted for an external document
func (s *LedgerService) GetMovementsByReference(ctx context.Context, tenantID uuid.UUID, refType, refNumber string) ([]MovementResponse, error) {
	movements, err := s.movementRepo.FindByReference(ctx, tenantID, refType, refNumber)
	if err != nil {
		return nil, err
	}
	return ToMovementResponses(movements), nil
}

// GetStockLine retrieves the line for a coordinate
func (s *LedgerService) GetStockLine(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*StockLineResponse, error) {
	line, err := s.lineRepo.FindByCoordinate(ctx, tenantID, productID, warehouseID, locationID, lotNumber)
	if err != nil {
		return nil, err
	}
	response := ToStockLineResponse(line)
	return &response, nil
}

// ListStockLinesByProduct retrieves all lines for a product across warehouses
func (s *LedgerService) ListStockLinesByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]StockLineResponse, error) {
	lines, err := s.lineRepo.FindByProduct(ctx, tenantID, productID, shared.DefaultFilter())
	if err != nil {
		return nil, err
	}
	return ToStockLineResponses(lines), nil
}

// ListStockLinesByWarehouse retrieves all lines in a warehouse
func (s *LedgerService) ListStockLinesByWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID, filter shared.Filter) ([]StockLineResponse, error) {
	lines, err := s.lineRepo.FindByWarehouse(ctx, tenantID, warehouseID, filter)
	if err != nil {
		return nil, err
	}
	return ToStockLineResponses(lines), nil
}

// ReplayBalance recomputes a line's current quantity from its movement
// history and compares it against the stored value. Used by audits; a
// mismatch is an integrity error.
func (s *LedgerService) ReplayBalance(ctx context.Context, tenantID, stockLineID uuid.UUID) (decimal.Decimal, error) {
	line, err := s.lineRepo.FindByIDForTenant(ctx, tenantID, stockLineID)
	if err != nil {
		return decimal.Zero, err
	}

	filter := shared.DefaultFilter()
	filter.PageSize = 1000
	filter.OrderBy = "occurred_at"
	filter.OrderDir = "asc"

	replayed := decimal.Zero
	for page := 1; ; page++ {
		filter.Page = page
		movements, err := s.movementRepo.FindByStockLine(ctx, stockLineID, filter)
		if err != nil {
			return decimal.Zero, err
		}
		if len(movements) == 0 {
			break
		}
		for i := range movements {
			replayed = replayed.Add(movements[i].SignedQuantity())
		}
		if len(movements) < filter.PageSize {
			break
		}
	}

	if !replayed.Equal(line.CurrentQuantity) {
		return replayed, shared.NewDomainError("INTEGRITY_ERROR",
			"Replayed balance "+replayed.String()+" does not match stored quantity "+line.CurrentQuantity.String())
	}
	return replayed, nil
}
