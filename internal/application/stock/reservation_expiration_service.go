package stock

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// expirationSweepBatchSize bounds how many reservations one sweep pass loads
	expirationSweepBatchSize = 500
)

// ReservationExpirationService expires overdue reservations and releases
// their holds. It runs as a recurring background sweep and is safe to run
// concurrently with itself and with fulfillment or cancellation of the same
// reservations: the status is re-checked inside the transaction that updates
// it, so a reservation that left Pending under a concurrent writer is simply
// skipped.
type ReservationExpirationService struct {
	txScope         TransactionScope
	reservationRepo stock.StockReservationRepository
	eventPublisher  shared.EventPublisher
	clock           shared.Clock
	logger          *zap.Logger
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(
	txScope TransactionScope,
	reservationRepo stock.StockReservationRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *ReservationExpirationService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationExpirationService{
		txScope:         txScope,
		reservationRepo: reservationRepo,
		clock:           clock,
		logger:          logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReservationExpirationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ExpiredReservationStats contains statistics about one sweep pass
type ExpiredReservationStats struct {
	TotalExpired   int       `json:"total_expired"`
	SuccessExpired int       `json:"success_expired"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// ProcessExpiredReservations finds overdue reservations and expires them one
// by one, each in its own transaction. A failure on one reservation never
// blocks the rest of the sweep.
func (s *ReservationExpirationService) ProcessExpiredReservations(ctx context.Context) (*ExpiredReservationStats, error) {
	now := s.clock.Now()
	stats := &ExpiredReservationStats{ProcessedAt: now}

	expired, err := s.reservationRepo.FindExpired(ctx, now, expirationSweepBatchSize)
	if err != nil {
		s.logger.Error("Failed to find expired reservations", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired reservations found")
		return stats, nil
	}

	s.logger.Info("Found expired reservations", zap.Int("count", stats.TotalExpired))

	for i := range expired {
		skipped, err := s.expireReservation(ctx, expired[i].TenantID, expired[i].ID, now)
		if err != nil {
			s.logger.Error("Failed to expire reservation",
				zap.String("reservation_id", expired[i].ID.String()),
				zap.String("reservation_number", expired[i].ReservationNumber),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		if skipped {
			stats.Skipped++
			continue
		}
		stats.SuccessExpired++
	}

	s.logger.Info("Completed expiration sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("expired", stats.SuccessExpired),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

// expireReservation expires one reservation inside its own transaction. The
// reservation is re-loaded and re-checked inside the transaction; returns
// skipped=true when a concurrent writer already moved it to a terminal state.
func (s *ReservationExpirationService) expireReservation(ctx context.Context, tenantID, reservationID uuid.UUID, now time.Time) (bool, error) {
	var (
		reservation *stock.StockReservation
		released    decimal.Decimal
		skipped     bool
	)
	err := withConcurrencyRetry(func() error {
		skipped = false
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			reservation, err = repos.ReservationRepo().FindByIDForTenant(ctx, tenantID, reservationID)
			if err != nil {
				return err
			}
			if !reservation.IsExpired(now) {
				skipped = true
				return nil
			}

			released, err = reservation.Expire(now)
			if err != nil {
				return err
			}

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
		})
	})
	if err != nil || skipped {
		return skipped, err
	}

	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, stock.NewReservationExpiredEvent(reservation, released))
	}

	s.logger.Debug("Expired reservation",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("reservation_number", reservation.ReservationNumber),
		zap.String("released", released.String()),
	)

	return false, nil
}

// GetExpiredReservationCount returns how many reservations are currently
// overdue but not yet expired
func (s *ReservationExpirationService) GetExpiredReservationCount(ctx context.Context) (int, error) {
	expired, err := s.reservationRepo.FindExpired(ctx, s.clock.Now(), expirationSweepBatchSize)
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}
