package stock

import (
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestReservation(t *testing.T, quantity int64) *StockReservation {
	t.Helper()
	r, err := NewStockReservation(
		uuid.New(), "RSV-000001",
		uuid.New(), uuid.New(), uuid.New(),
		decimal.NewFromInt(quantity),
		ReservationTypeSalesOrder,
	)
	require.NoError(t, err)
	return r
}

func TestNewStockReservation(t *testing.T) {
	t.Run("creates pending reservation", func(t *testing.T) {
		r := createTestReservation(t, 10)

		assert.Equal(t, ReservationStatusPending, r.Status)
		assert.True(t, r.FulfilledQuantity.IsZero())
		assert.Equal(t, "10", r.RemainingQuantity().String())
	})

	t.Run("fails on non-positive quantity", func(t *testing.T) {
		r, err := NewStockReservation(
			uuid.New(), "RSV-000002",
			uuid.New(), uuid.New(), uuid.New(),
			decimal.Zero, ReservationTypeSalesOrder,
		)

		require.Error(t, err)
		assert.Nil(t, r)
	})

	t.Run("fails on unknown reservation type", func(t *testing.T) {
		r, err := NewStockReservation(
			uuid.New(), "RSV-000003",
			uuid.New(), uuid.New(), uuid.New(),
			decimal.NewFromInt(1), ReservationType("WISHFUL"),
		)

		require.Error(t, err)
		assert.Nil(t, r)
	})
}

func TestReservationTransitions(t *testing.T) {
	t.Run("terminal states admit no transitions", func(t *testing.T) {
		for _, from := range []ReservationStatus{
			ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired,
		} {
			for _, to := range []ReservationStatus{
				ReservationStatusPending, ReservationStatusPartiallyFulfilled,
				ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired,
			} {
				assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("pending may move to any non-pending state", func(t *testing.T) {
		assert.True(t, CanTransition(ReservationStatusPending, ReservationStatusPartiallyFulfilled))
		assert.True(t, CanTransition(ReservationStatusPending, ReservationStatusFulfilled))
		assert.True(t, CanTransition(ReservationStatusPending, ReservationStatusCancelled))
		assert.True(t, CanTransition(ReservationStatusPending, ReservationStatusExpired))
		assert.False(t, CanTransition(ReservationStatusPending, ReservationStatusPending))
	})

	t.Run("partially fulfilled may fulfill again", func(t *testing.T) {
		assert.True(t, CanTransition(ReservationStatusPartiallyFulfilled, ReservationStatusPartiallyFulfilled))
		assert.True(t, CanTransition(ReservationStatusPartiallyFulfilled, ReservationStatusFulfilled))
	})
}

func TestStockReservation_Fulfill(t *testing.T) {
	now := time.Now()

	t.Run("releases the full quantity when nothing was fulfilled", func(t *testing.T) {
		r := createTestReservation(t, 10)

		released, err := r.Fulfill(now)

		require.NoError(t, err)
		assert.Equal(t, "10", released.String())
		assert.Equal(t, ReservationStatusFulfilled, r.Status)
		assert.Equal(t, "10", r.FulfilledQuantity.String())
		require.NotNil(t, r.FulfilledAt)
	})

	t.Run("releases only the remainder after partial fulfillment", func(t *testing.T) {
		r := createTestReservation(t, 10)
		_, err := r.PartialFulfill(decimal.NewFromInt(4), now)
		require.NoError(t, err)

		released, err := r.Fulfill(now)

		require.NoError(t, err)
		assert.Equal(t, "6", released.String())
		assert.Equal(t, "10", r.FulfilledQuantity.String())
	})

	t.Run("fails on a terminal reservation", func(t *testing.T) {
		r := createTestReservation(t, 10)
		_, err := r.Cancel(uuid.New(), now)
		require.NoError(t, err)

		_, err = r.Fulfill(now)

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})
}

func TestStockReservation_PartialFulfill(t *testing.T) {
	now := time.Now()

	t.Run("moves to partially fulfilled and tracks the amount", func(t *testing.T) {
		r := createTestReservation(t, 10)

		released, err := r.PartialFulfill(decimal.NewFromInt(3), now)

		require.NoError(t, err)
		assert.Equal(t, "3", released.String())
		assert.Equal(t, ReservationStatusPartiallyFulfilled, r.Status)
		assert.Equal(t, "7", r.RemainingQuantity().String())
		assert.Nil(t, r.FulfilledAt)
	})

	t.Run("completing the request moves to fulfilled", func(t *testing.T) {
		r := createTestReservation(t, 10)
		_, err := r.PartialFulfill(decimal.NewFromInt(4), now)
		require.NoError(t, err)

		_, err = r.PartialFulfill(decimal.NewFromInt(6), now)

		require.NoError(t, err)
		assert.Equal(t, ReservationStatusFulfilled, r.Status)
		require.NotNil(t, r.FulfilledAt)
	})

	t.Run("fails when amount exceeds the remainder", func(t *testing.T) {
		r := createTestReservation(t, 10)

		_, err := r.PartialFulfill(decimal.NewFromInt(11), now)

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("fulfilled quantity never exceeds requested across steps", func(t *testing.T) {
		r := createTestReservation(t, 10)
		for _, amount := range []int64{3, 3, 3} {
			_, err := r.PartialFulfill(decimal.NewFromInt(amount), now)
			require.NoError(t, err)
		}

		_, err := r.PartialFulfill(decimal.NewFromInt(2), now)
		require.Error(t, err)

		_, err = r.PartialFulfill(decimal.NewFromInt(1), now)
		require.NoError(t, err)
		assert.Equal(t, ReservationStatusFulfilled, r.Status)
	})
}

func TestStockReservation_Cancel(t *testing.T) {
	now := time.Now()

	t.Run("releases the unfulfilled remainder", func(t *testing.T) {
		r := createTestReservation(t, 10)
		_, err := r.PartialFulfill(decimal.NewFromInt(4), now)
		require.NoError(t, err)

		by := uuid.New()
		released, err := r.Cancel(by, now)

		require.NoError(t, err)
		assert.Equal(t, "6", released.String())
		assert.Equal(t, ReservationStatusCancelled, r.Status)
		require.NotNil(t, r.CancelledBy)
		assert.Equal(t, by, *r.CancelledBy)
		require.NotNil(t, r.CancelledAt)
	})

	t.Run("fails on an already cancelled reservation", func(t *testing.T) {
		r := createTestReservation(t, 10)
		_, err := r.Cancel(uuid.New(), now)
		require.NoError(t, err)

		_, err = r.Cancel(uuid.New(), now)

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})
}

func TestStockReservation_Expire(t *testing.T) {
	now := time.Now()

	t.Run("releases the remainder and records expired status", func(t *testing.T) {
		r := createTestReservation(t, 10)
		r.WithExpiration(now.Add(-time.Hour))

		require.True(t, r.IsExpired(now))

		released, err := r.Expire(now)

		require.NoError(t, err)
		assert.Equal(t, "10", released.String())
		assert.Equal(t, ReservationStatusExpired, r.Status)
	})

	t.Run("a terminal reservation is never reported expired", func(t *testing.T) {
		r := createTestReservation(t, 10)
		r.WithExpiration(now.Add(-time.Hour))
		_, err := r.Fulfill(now)
		require.NoError(t, err)

		assert.False(t, r.IsExpired(now))
	})

	t.Run("a reservation without expiration never expires", func(t *testing.T) {
		r := createTestReservation(t, 10)

		assert.False(t, r.IsExpired(now.Add(24*365*time.Hour)))
	})
}

// Conservation: on every terminal path, fulfilled + released = requested.
func TestStockReservation_ConservationOnTerminalPaths(t *testing.T) {
	now := time.Now()
	requested := decimal.NewFromInt(10)

	paths := map[string]func(t *testing.T, r *StockReservation) decimal.Decimal{
		"fulfill": func(t *testing.T, r *StockReservation) decimal.Decimal {
			released, err := r.Fulfill(now)
			require.NoError(t, err)
			return released
		},
		"partial then cancel": func(t *testing.T, r *StockReservation) decimal.Decimal {
			released, err := r.PartialFulfill(decimal.NewFromInt(4), now)
			require.NoError(t, err)
			more, err := r.Cancel(uuid.Nil, now)
			require.NoError(t, err)
			return released.Add(more)
		},
		"partial then expire": func(t *testing.T, r *StockReservation) decimal.Decimal {
			released, err := r.PartialFulfill(decimal.NewFromInt(7), now)
			require.NoError(t, err)
			more, err := r.Expire(now)
			require.NoError(t, err)
			return released.Add(more)
		},
		"cancel immediately": func(t *testing.T, r *StockReservation) decimal.Decimal {
			released, err := r.Cancel(uuid.Nil, now)
			require.NoError(t, err)
			return released
		},
	}

	for name, run := range paths {
		t.Run(name, func(t *testing.T) {
			r := createTestReservation(t, 10)

			released := run(t, r)

			// Every unit of the reserved hold is eventually released, whether
			// through fulfillment, cancellation or expiration
			assert.True(t, r.Status.IsTerminal())
			assert.Equal(t, requested.String(), released.String())
		})
	}
}
