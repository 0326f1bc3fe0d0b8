package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appstock "github.com/erp/stockledger/internal/application/stock"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Stock ledger sweeper starting",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Duration("interval", cfg.Sweeper.Interval),
	)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	txScope := persistence.NewGormTransactionScope(db.DB)
	lineRepo := persistence.NewGormStockLineRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)
	reservationRepo := persistence.NewGormStockReservationRepository(db.DB)
	lotRepo := persistence.NewGormLotBatchRepository(db.DB)
	consignmentRepo := persistence.NewGormConsignmentRepository(db.DB)
	tenantSource := persistence.NewGormTenantSource(db.DB)

	expirationService := appstock.NewReservationExpirationService(txScope, reservationRepo, nil, log)
	lotService := appstock.NewLotService(txScope, lotRepo, movementRepo, nil, log)
	consignmentService := appstock.NewConsignmentService(txScope, consignmentRepo, nil, log)
	levelMonitor := appstock.NewStockLevelMonitor(lineRepo, lotRepo, nil, nil, nil, log)

	sweeper := scheduler.NewSweeper(cfg.Sweeper.Interval, log)

	if cfg.Sweeper.ExpirationEnabled {
		sweeper.Register("expire-reservations", func(ctx context.Context) error {
			stats, err := expirationService.ProcessExpiredReservations(ctx)
			if err != nil {
				return err
			}
			if stats.SuccessExpired > 0 || stats.Failed > 0 {
				log.Info("Reservation expiration sweep",
					zap.Int("expired", stats.SuccessExpired),
					zap.Int("skipped", stats.Skipped),
					zap.Int("failed", stats.Failed),
				)
			}
			return nil
		})
	}

	if cfg.Sweeper.LotExpiryEnabled {
		sweeper.Register("mark-expired-lots", scheduler.ForEachTenant(tenantSource, log, "mark-expired-lots",
			func(ctx context.Context, tenantID uuid.UUID) error {
				stats, err := lotService.MarkExpiredLots(ctx, tenantID)
				if err != nil {
					return err
				}
				if stats.Marked > 0 || stats.Failed > 0 {
					log.Info("Lot expiry sweep",
						zap.String("tenant_id", tenantID.String()),
						zap.Int("marked", stats.Marked),
						zap.Int("failed", stats.Failed),
					)
				}
				return nil
			}))

		sweeper.Register("expiring-lot-alerts", scheduler.ForEachTenant(tenantSource, log, "expiring-lot-alerts",
			func(ctx context.Context, tenantID uuid.UUID) error {
				alerts, err := levelMonitor.CheckExpiringStocks(ctx, tenantID, cfg.Sweeper.ExpiringWindowDays, nil)
				if err != nil {
					return err
				}
				if len(alerts) > 0 {
					log.Info("Expiring lot alerts",
						zap.String("tenant_id", tenantID.String()),
						zap.Int("alerts", len(alerts)),
					)
				}
				return nil
			}))
	}

	if cfg.Sweeper.ReconcileEnabled {
		sweeper.Register("consignment-reconciliation", scheduler.ForEachTenant(tenantSource, log, "consignment-reconciliation",
			func(ctx context.Context, tenantID uuid.UUID) error {
				stats, err := consignmentService.RunReconciliation(ctx, tenantID)
				if err != nil {
					return err
				}
				if stats.Reconciled > 0 || stats.Failed > 0 {
					log.Info("Consignment reconciliation sweep",
						zap.String("tenant_id", tenantID.String()),
						zap.Int("reconciled", stats.Reconciled),
						zap.Int("failed", stats.Failed),
					)
				}
				return nil
			}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start sweeper", zap.Error(err))
	}

	// Run one sweep immediately so a restart does not wait a full interval
	sweeper.RunOnce(ctx)

	<-ctx.Done()
	log.Info("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sweeper.Stop(stopCtx); err != nil {
		log.Error("Sweeper did not stop cleanly", zap.Error(err))
	}

	log.Info("Stock ledger sweeper stopped")
}
