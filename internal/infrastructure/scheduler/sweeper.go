package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantSource lists the tenants that background sweeps should visit.
// Implementations typically derive the list from the stock lines table.
type TenantSource interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Job is a named unit of background work executed on every sweep tick
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Sweeper periodically runs a fixed set of maintenance jobs. Jobs run
// sequentially on each tick; a failing job is logged and does not stop the
// others. A tick that is still running when the next one fires is not
// overlapped, the late tick is skipped.
type Sweeper struct {
	interval time.Duration
	jobs     []Job
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweeper creates a new sweeper that fires every interval
func NewSweeper(interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		logger:   logger,
	}
}

// Register adds a job to the sweep cycle. Must be called before Start.
func (s *Sweeper) Register(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Run: run})
}

// Start begins the sweep loop. It returns immediately; jobs run on a
// background goroutine until Stop is called or the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("jobs", len(s.jobs)),
	)

	return nil
}

// Stop gracefully stops the sweeper, waiting for an in-flight sweep to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sweeper stop timed out")
		return ctx.Err()
	}
}

// RunOnce executes every registered job a single time, outside the ticker.
// Useful for an initial sweep at startup and for tests.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.runJobs(ctx)
}

// loop drives the ticker until the context is cancelled
func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJobs(ctx)
		}
	}
}

// runJobs executes all registered jobs sequentially
func (s *Sweeper) runJobs(ctx context.Context) {
	for _, job := range s.jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("Sweep job failed",
				zap.String("job", job.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			continue
		}
		s.logger.Debug("Sweep job completed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// ForEachTenant wraps a per-tenant sweep function into a Job body. Tenants
// are visited sequentially; a failure for one tenant is logged and the rest
// still run.
func ForEachTenant(source TenantSource, logger *zap.Logger, name string, fn func(ctx context.Context, tenantID uuid.UUID) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		tenantIDs, err := source.ListTenantIDs(ctx)
		if err != nil {
			return err
		}

		for _, tenantID := range tenantIDs {
			if err := fn(ctx, tenantID); err != nil {
				logger.Error("Tenant sweep failed",
					zap.String("job", name),
					zap.String("tenant_id", tenantID.String()),
					zap.Error(err),
				)
			}
		}
		return nil
	}
}
