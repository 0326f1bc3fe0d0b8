package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTenantSource struct {
	tenantIDs []uuid.UUID
	err       error
}

func (s *stubTenantSource) ListTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	return s.tenantIDs, s.err
}

func TestSweeperRunOnce(t *testing.T) {
	t.Run("runs all registered jobs in order", func(t *testing.T) {
		sweeper := NewSweeper(time.Hour, zap.NewNop())

		var order []string
		sweeper.Register("first", func(_ context.Context) error {
			order = append(order, "first")
			return nil
		})
		sweeper.Register("second", func(_ context.Context) error {
			order = append(order, "second")
			return nil
		})

		sweeper.RunOnce(context.Background())

		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("a failing job does not stop the rest", func(t *testing.T) {
		sweeper := NewSweeper(time.Hour, zap.NewNop())

		var ran bool
		sweeper.Register("failing", func(_ context.Context) error {
			return errors.New("boom")
		})
		sweeper.Register("after", func(_ context.Context) error {
			ran = true
			return nil
		})

		sweeper.RunOnce(context.Background())

		assert.True(t, ran)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		sweeper := NewSweeper(time.Hour, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		var ran bool
		sweeper.Register("cancelling", func(_ context.Context) error {
			cancel()
			return nil
		})
		sweeper.Register("after", func(_ context.Context) error {
			ran = true
			return nil
		})

		sweeper.RunOnce(ctx)

		assert.False(t, ran)
	})
}

func TestSweeperStartStop(t *testing.T) {
	t.Run("ticks execute registered jobs", func(t *testing.T) {
		sweeper := NewSweeper(10*time.Millisecond, zap.NewNop())

		var count atomic.Int64
		sweeper.Register("counter", func(_ context.Context) error {
			count.Add(1)
			return nil
		})

		require.NoError(t, sweeper.Start(context.Background()))

		assert.Eventually(t, func() bool {
			return count.Load() >= 2
		}, time.Second, 5*time.Millisecond)

		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, sweeper.Stop(stopCtx))

		stopped := count.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, stopped, count.Load())
	})

	t.Run("start is idempotent", func(t *testing.T) {
		sweeper := NewSweeper(time.Hour, zap.NewNop())

		require.NoError(t, sweeper.Start(context.Background()))
		require.NoError(t, sweeper.Start(context.Background()))

		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, sweeper.Stop(stopCtx))
	})

	t.Run("stop on a stopped sweeper is a no-op", func(t *testing.T) {
		sweeper := NewSweeper(time.Hour, zap.NewNop())

		require.NoError(t, sweeper.Stop(context.Background()))
	})
}

func TestForEachTenant(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	t.Run("visits every tenant", func(t *testing.T) {
		source := &stubTenantSource{tenantIDs: []uuid.UUID{tenantA, tenantB}}

		var visited []uuid.UUID
		job := ForEachTenant(source, zap.NewNop(), "visit", func(_ context.Context, tenantID uuid.UUID) error {
			visited = append(visited, tenantID)
			return nil
		})

		require.NoError(t, job(context.Background()))
		assert.Equal(t, []uuid.UUID{tenantA, tenantB}, visited)
	})

	t.Run("one tenant failing does not skip the rest", func(t *testing.T) {
		source := &stubTenantSource{tenantIDs: []uuid.UUID{tenantA, tenantB}}

		var visited []uuid.UUID
		job := ForEachTenant(source, zap.NewNop(), "visit", func(_ context.Context, tenantID uuid.UUID) error {
			visited = append(visited, tenantID)
			if tenantID == tenantA {
				return errors.New("boom")
			}
			return nil
		})

		require.NoError(t, job(context.Background()))
		assert.Equal(t, []uuid.UUID{tenantA, tenantB}, visited)
	})

	t.Run("listing failure aborts the sweep", func(t *testing.T) {
		source := &stubTenantSource{err: errors.New("db down")}

		job := ForEachTenant(source, zap.NewNop(), "visit", func(_ context.Context, _ uuid.UUID) error {
			t.Fatal("should not be called")
			return nil
		})

		assert.Error(t, job(context.Background()))
	})
}
