package stock

import (
	"context"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationService manages the reservation lifecycle. Creating a
// reservation raises the target line's reserved quantity; every terminal
// transition releases the unfulfilled hold back to available. Both sides of
// each change are written in one transaction so the line's reserved quantity
// always equals the sum of its open reservation remainders.
type ReservationService struct {
	txScope         TransactionScope
	reservationRepo stock.StockReservationRepository
	eventPublisher  shared.EventPublisher
	clock           shared.Clock
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	txScope TransactionScope,
	reservationRepo stock.StockReservationRepository,
	clock shared.Clock,
) *ReservationService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &ReservationService{
		txScope:         txScope,
		reservationRepo: reservationRepo,
		clock:           clock,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *ReservationService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// CreateReservation earmarks available quantity on a stock line. The line
// must already exist and hold enough available quantity; reservations never
// create lines or overdraw them.
func (s *ReservationService) CreateReservation(ctx context.Context, tenantID uuid.UUID, req CreateReservationRequest) (*ReservationResponse, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}
	if req.ProductID == uuid.Nil || req.WarehouseID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product and warehouse IDs are required")
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if !req.ReservationType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid reservation type")
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(s.clock.Now()) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Expiration date must be in the future")
	}

	var reservation *stock.StockReservation
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			line, err := repos.LineRepo().FindByCoordinate(ctx, tenantID, req.ProductID, req.WarehouseID, req.LocationID, req.LotNumber)
			if err != nil {
				return err
			}
			if err := line.CheckUnit(req.UnitOfMeasure); err != nil {
				return err
			}
			if err := line.Reserve(req.Quantity); err != nil {
				return err
			}

			if req.LotNumber != "" {
				lot, err := repos.LotRepo().FindByLotNumber(ctx, tenantID, req.ProductID, req.LotNumber)
				if err != nil {
					return err
				}
				if err := lot.Reserve(req.Quantity); err != nil {
					return err
				}
				if err := repos.LotRepo().SaveWithLock(ctx, lot); err != nil {
					return err
				}
			}

			number, err := repos.SequenceRepo().Next(ctx, tenantID, stock.ReservationNumberPrefix)
			if err != nil {
				return err
			}

			reservation, err = stock.NewStockReservation(
				tenantID, number,
				line.ID, req.ProductID, req.WarehouseID,
				req.Quantity, req.ReservationType,
			)
			if err != nil {
				return err
			}
			if req.LocationID != nil {
				reservation.WithLocation(*req.LocationID)
			}
			if req.ExpirationDate != nil {
				reservation.WithExpiration(*req.ExpirationDate)
			}
			if req.ReferenceType != "" || req.ReferenceNumber != "" || req.ReferenceID != nil {
				reservation.WithReference(stock.ReferenceDocument{
					Type:   req.ReferenceType,
					Number: req.ReferenceNumber,
					ID:     req.ReferenceID,
				})
			}
			reservation.WithUnit(line.UnitOfMeasure)
			reservation.Notes = req.Notes

			if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
				return err
			}
			return repos.ReservationRepo().Save(ctx, reservation)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, stock.NewReservationCreatedEvent(reservation))

	response := ToReservationResponse(reservation)
	return &response, nil
}

// FulfillReservation completes a reservation, in full when req.Amount is nil
// or for the given partial amount. The released hold is dropped from the
// line's reserved quantity; the caller posts the matching Outgoing movement
// for the shipped quantity as a separate ledger call.
func (s *ReservationService) FulfillReservation(ctx context.Context, tenantID uuid.UUID, req FulfillReservationRequest) (*ReservationResponse, error) {
	var (
		reservation *stock.StockReservation
		released    decimal.Decimal
		partial     bool
		amount      decimal.Decimal
	)
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			reservation, err = repos.ReservationRepo().FindByIDForTenant(ctx, tenantID, req.ReservationID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			if req.Amount == nil {
				amount = reservation.RemainingQuantity()
				released, err = reservation.Fulfill(now)
				partial = false
			} else {
				amount = *req.Amount
				released, err = reservation.PartialFulfill(*req.Amount, now)
				partial = reservation.Status == stock.ReservationStatusPartiallyFulfilled
			}
			if err != nil {
				return err
			}

			return s.releaseHold(ctx, repos, tenantID, reservation, released)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, stock.NewReservationFulfilledEvent(reservation, amount, partial))

	response := ToReservationResponse(reservation)
	return &response, nil
}

// CancelReservation cancels a reservation and returns its unfulfilled
// remainder to available quantity
func (s *ReservationService) CancelReservation(ctx context.Context, tenantID uuid.UUID, req CancelReservationRequest) (*ReservationResponse, error) {
	var (
		reservation *stock.StockReservation
		released    decimal.Decimal
	)
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			reservation, err = repos.ReservationRepo().FindByIDForTenant(ctx, tenantID, req.ReservationID)
			if err != nil {
				return err
			}

			released, err = reservation.Cancel(req.CancelledBy, s.clock.Now())
			if err != nil {
				return err
			}
			if req.Reason != "" {
				reservation.Notes = req.Reason
			}

			return s.releaseHold(ctx, repos, tenantID, reservation, released)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, stock.NewReservationCancelledEvent(reservation, released))

	response := ToReservationResponse(reservation)
	return &response, nil
}

// releaseHold drops the released quantity from the line's (and lot's)
// reserved quantity and persists reservation and line together
func (s *ReservationService) releaseHold(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, reservation *stock.StockReservation, released decimal.Decimal) error {
	if released.IsPositive() {
		line, err := repos.LineRepo().FindByID(ctx, reservation.StockLineID)
		if err != nil {
			return err
		}
		if err := line.ReleaseReserved(released); err != nil {
			return err
		}
		if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
			return err
		}

		if line.LotNumber != "" {
			lot, err := repos.LotRepo().FindByLotNumber(ctx, tenantID, reservation.ProductID, line.LotNumber)
			if err != nil {
				return err
			}
			if err := lot.ReleaseReserved(released); err != nil {
				return err
			}
			if err := repos.LotRepo().SaveWithLock(ctx, lot); err != nil {
				return err
			}
		}
	}
	return repos.ReservationRepo().SaveWithLock(ctx, reservation)
}

// GetReservation retrieves a reservation by ID
func (s *ReservationService) GetReservation(ctx context.Context, tenantID, reservationID uuid.UUID) (*ReservationResponse, error) {
	reservation, err := s.reservationRepo.FindByIDForTenant(ctx, tenantID, reservationID)
	if err != nil {
		return nil, err
	}
	response := ToReservationResponse(reservation)
	return &response, nil
}

// GetReservationsByReference retrieves all reservations held for an external document
func (s *ReservationService) GetReservationsByReference(ctx context.Context, tenantID uuid.UUID, refType, refNumber string) ([]ReservationResponse, error) {
	reservations, err := s.reservationRepo.FindByReference(ctx, tenantID, refType, refNumber)
	if err != nil {
		return nil, err
	}
	return ToReservationResponses(reservations), nil
}

// ListReservationsByStatus retrieves reservations in a given status
func (s *ReservationService) ListReservationsByStatus(ctx context.Context, tenantID uuid.UUID, status stock.ReservationStatus, filter shared.Filter) ([]ReservationResponse, error) {
	reservations, err := s.reservationRepo.FindByStatus(ctx, tenantID, status, filter)
	if err != nil {
		return nil, err
	}
	return ToReservationResponses(reservations), nil
}
