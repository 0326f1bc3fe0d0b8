package stock

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SerialService tracks uniquely identified units through their lifecycle.
// Serial transitions are bookkeeping on individual units; aggregate quantity
// stays on the ledger, so selling a serialized unit still posts an Outgoing
// movement through the ledger service.
type SerialService struct {
	txScope        TransactionScope
	serialRepo     stock.SerialNumberRepository
	eventPublisher shared.EventPublisher
	clock          shared.Clock
	logger         *zap.Logger
}

// NewSerialService creates a new SerialService
func NewSerialService(
	txScope TransactionScope,
	serialRepo stock.SerialNumberRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *SerialService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerialService{
		txScope:    txScope,
		serialRepo: serialRepo,
		clock:      clock,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *SerialService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *SerialService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// RegisterSerial registers one unit as it enters stock
func (s *SerialService) RegisterSerial(ctx context.Context, tenantID uuid.UUID, req RegisterSerialRequest) (*SerialNumberResponse, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}

	exists, err := s.serialRepo.ExistsBySerial(ctx, tenantID, req.ProductID, req.Serial)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			"Serial "+req.Serial+" is already registered for this product")
	}

	serial, err := stock.NewSerialNumber(tenantID, req.ProductID, req.Serial)
	if err != nil {
		return nil, err
	}
	serial.WarehouseID = req.WarehouseID
	serial.LotNumber = req.LotNumber

	if err := s.serialRepo.Save(ctx, serial); err != nil {
		return nil, err
	}

	response := ToSerialNumberResponse(serial, s.clock.Now())
	return &response, nil
}

// RegisterSerialBatch registers a receipt of serialized units in one pass.
// The whole batch is registered in a single transaction: one duplicate serial
// fails the entire receipt.
func (s *SerialService) RegisterSerialBatch(ctx context.Context, tenantID uuid.UUID, reqs []RegisterSerialRequest) ([]SerialNumberResponse, error) {
	if len(reqs) == 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "At least one serial is required")
	}

	serials := make([]*stock.SerialNumber, 0, len(reqs))
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, req := range reqs {
			exists, err := repos.SerialRepo().ExistsBySerial(ctx, tenantID, req.ProductID, req.Serial)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError("ALREADY_EXISTS",
					"Serial "+req.Serial+" is already registered for this product")
			}

			serial, err := stock.NewSerialNumber(tenantID, req.ProductID, req.Serial)
			if err != nil {
				return err
			}
			serial.WarehouseID = req.WarehouseID
			serial.LotNumber = req.LotNumber

			if err := repos.SerialRepo().Save(ctx, serial); err != nil {
				return err
			}
			serials = append(serials, serial)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Registered serial batch",
		zap.Int("count", len(serials)),
		zap.String("product_id", reqs[0].ProductID.String()),
	)

	now := s.clock.Now()
	responses := make([]SerialNumberResponse, len(serials))
	for i := range serials {
		responses[i] = ToSerialNumberResponse(serials[i], now)
	}
	return responses, nil
}

// mutateSerial loads the serial, applies fn and saves with locking, then
// publishes the status change
func (s *SerialService) mutateSerial(ctx context.Context, tenantID, serialID uuid.UUID, fn func(*stock.SerialNumber) error) (*SerialNumberResponse, error) {
	var (
		serial    *stock.SerialNumber
		oldStatus stock.SerialStatus
	)
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			serial, err = repos.SerialRepo().FindByIDForTenant(ctx, tenantID, serialID)
			if err != nil {
				return err
			}
			oldStatus = serial.Status
			if err := fn(serial); err != nil {
				return err
			}
			return repos.SerialRepo().SaveWithLock(ctx, serial)
		})
	})
	if err != nil {
		return nil, err
	}

	if serial.Status != oldStatus {
		s.publish(ctx, stock.NewSerialStatusChangedEvent(serial, oldStatus))
	}

	response := ToSerialNumberResponse(serial, s.clock.Now())
	return &response, nil
}

// ReserveSerial holds a unit for a pending order
func (s *SerialService) ReserveSerial(ctx context.Context, tenantID, serialID uuid.UUID, salesOrderID *uuid.UUID) (*SerialNumberResponse, error) {
	return s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.Reserve(salesOrderID)
	})
}

// ReleaseSerial returns a reserved unit to stock
func (s *SerialService) ReleaseSerial(ctx context.Context, tenantID, serialID uuid.UUID) (*SerialNumberResponse, error) {
	return s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.ReleaseReservation()
	})
}

// SellSerial records the sale of a unit and opens its warranty window
func (s *SerialService) SellSerial(ctx context.Context, tenantID uuid.UUID, req SellSerialRequest) (*SerialNumberResponse, error) {
	soldAt := s.clock.Now()
	return s.mutateSerial(ctx, tenantID, req.SerialID, func(serial *stock.SerialNumber) error {
		return serial.MarkSold(req.CustomerID, req.SalesOrderID, soldAt, req.WarrantyMonths)
	})
}

// ReturnSerial records a customer return of a sold unit
func (s *SerialService) ReturnSerial(ctx context.Context, tenantID, serialID uuid.UUID, reason string) (*SerialNumberResponse, error) {
	return s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.MarkReturned(reason)
	})
}

// RestockSerial puts a returned unit back into sellable stock
func (s *SerialService) RestockSerial(ctx context.Context, tenantID, serialID uuid.UUID) (*SerialNumberResponse, error) {
	return s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.RestockReturned()
	})
}

// MarkSerialDamaged flags a unit as damaged
func (s *SerialService) MarkSerialDamaged(ctx context.Context, tenantID, serialID uuid.UUID, reason string) (*SerialNumberResponse, error) {
	return s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.MarkDamaged(reason)
	})
}

// ScrapSerial disposes of a unit permanently
func (s *SerialService) ScrapSerial(ctx context.Context, tenantID, serialID uuid.UUID, reason string) (*SerialNumberResponse, error) {
	return s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.MarkScrapped(reason)
	})
}

// OverrideSerialWarranty replaces the warranty window as an administrative
// correction
func (s *SerialService) OverrideSerialWarranty(ctx context.Context, tenantID, serialID uuid.UUID, start, end time.Time, userID *uuid.UUID) (*SerialNumberResponse, error) {
	response, err := s.mutateSerial(ctx, tenantID, serialID, func(serial *stock.SerialNumber) error {
		return serial.OverrideWarranty(start, end)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("serial_id", serialID.String()),
		zap.Time("warranty_start", start),
		zap.Time("warranty_end", end),
	}
	if userID != nil {
		fields = append(fields, zap.String("user_id", userID.String()))
	}
	s.logger.Info("Overrode serial warranty", fields...)

	return response, nil
}

// GetSerial retrieves a serial by ID
func (s *SerialService) GetSerial(ctx context.Context, tenantID, serialID uuid.UUID) (*SerialNumberResponse, error) {
	serial, err := s.serialRepo.FindByIDForTenant(ctx, tenantID, serialID)
	if err != nil {
		return nil, err
	}
	response := ToSerialNumberResponse(serial, s.clock.Now())
	return &response, nil
}

// GetBySerial retrieves a serial by product and serial string
func (s *SerialService) GetBySerial(ctx context.Context, tenantID, productID uuid.UUID, serial string) (*SerialNumberResponse, error) {
	found, err := s.serialRepo.FindBySerial(ctx, tenantID, productID, serial)
	if err != nil {
		return nil, err
	}
	response := ToSerialNumberResponse(found, s.clock.Now())
	return &response, nil
}

// ListSerialsByStatus retrieves serials in a given status
func (s *SerialService) ListSerialsByStatus(ctx context.Context, tenantID uuid.UUID, status stock.SerialStatus, filter shared.Filter) ([]SerialNumberResponse, error) {
	serials, err := s.serialRepo.FindByStatus(ctx, tenantID, status, filter)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	responses := make([]SerialNumberResponse, len(serials))
	for i := range serials {
		responses[i] = ToSerialNumberResponse(&serials[i], now)
	}
	return responses, nil
}

// CountSerialsByStatus counts serials by status for a product
func (s *SerialService) CountSerialsByStatus(ctx context.Context, tenantID, productID uuid.UUID, status stock.SerialStatus) (int64, error) {
	return s.serialRepo.CountByStatus(ctx, tenantID, productID, status)
}
