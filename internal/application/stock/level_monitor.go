package stock

import (
	"context"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Alert type constants
const (
	AlertTypeBelowMinimum = "BELOW_MINIMUM"
	AlertTypeReorderPoint = "REORDER_POINT"
	AlertTypeExpiringLot  = "EXPIRING_LOT"
)

// ProductStockPolicy carries the replenishment thresholds configured for a
// product. Thresholds live in the product catalog, not on stock lines; the
// monitor only reads them.
type ProductStockPolicy struct {
	ProductID         uuid.UUID
	MinimumLevel      decimal.Decimal
	ReorderPoint      decimal.Decimal
	ReorderQuantity   decimal.Decimal
	PreferredSupplier *uuid.UUID
}

// ProductCatalog is the monitor's view of the product master data
type ProductCatalog interface {
	// ListStockPolicies returns the policies of all products with a
	// configured minimum level or reorder point
	ListStockPolicies(ctx context.Context, tenantID uuid.UUID) ([]ProductStockPolicy, error)
}

// WarehouseDirectory is the monitor's view of the warehouse master data
type WarehouseDirectory interface {
	// ListWarehouseIDs returns the IDs of all active warehouses
	ListWarehouseIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}

// StockLevelMonitor surfaces threshold breaches as alerts and events. It is
// read-only with respect to the ledger: it never changes any quantity.
type StockLevelMonitor struct {
	lineRepo       stock.StockLineRepository
	lotRepo        stock.LotBatchRepository
	catalog        ProductCatalog
	warehouses     WarehouseDirectory
	eventPublisher shared.EventPublisher
	clock          shared.Clock
	logger         *zap.Logger
}

// NewStockLevelMonitor creates a new StockLevelMonitor
func NewStockLevelMonitor(
	lineRepo stock.StockLineRepository,
	lotRepo stock.LotBatchRepository,
	catalog ProductCatalog,
	warehouses WarehouseDirectory,
	clock shared.Clock,
	logger *zap.Logger,
) *StockLevelMonitor {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLevelMonitor{
		lineRepo:   lineRepo,
		lotRepo:    lotRepo,
		catalog:    catalog,
		warehouses: warehouses,
		clock:      clock,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockLevelMonitor) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *StockLevelMonitor) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// warehouseLevel aggregates a product's lines within one warehouse. A
// warehouse may hold several lines for the product (locations, lots); the
// thresholds apply to the warehouse total.
type warehouseLevel struct {
	current   decimal.Decimal
	available decimal.Decimal
	unit      string
}

// levelsByWarehouse sums a product's stock per warehouse, optionally
// narrowed to a single warehouse. The returned order is first-seen so alert
// output is stable.
func (s *StockLevelMonitor) levelsByWarehouse(ctx context.Context, tenantID, productID uuid.UUID, warehouseID *uuid.UUID) (map[uuid.UUID]warehouseLevel, []uuid.UUID, error) {
	lines, err := s.lineRepo.FindByProduct(ctx, tenantID, productID, shared.Filter{})
	if err != nil {
		return nil, nil, err
	}

	levels := make(map[uuid.UUID]warehouseLevel)
	var order []uuid.UUID
	for i := range lines {
		line := &lines[i]
		if warehouseID != nil && line.WarehouseID != *warehouseID {
			continue
		}
		level, ok := levels[line.WarehouseID]
		if !ok {
			level = warehouseLevel{current: decimal.Zero, available: decimal.Zero}
			order = append(order, line.WarehouseID)
		}
		level.current = level.current.Add(line.CurrentQuantity)
		level.available = level.available.Add(line.AvailableQuantity())
		if level.unit == "" {
			level.unit = line.UnitOfMeasure
		}
		levels[line.WarehouseID] = level
	}
	return levels, order, nil
}

// alertShortage is how far the on-hand amount falls below the threshold
func alertShortage(current, threshold decimal.Decimal, unit string) (decimal.Decimal, error) {
	have, err := valueobject.NewQuantity(current, unit)
	if err != nil {
		return decimal.Zero, err
	}
	need, err := valueobject.NewQuantity(threshold, unit)
	if err != nil {
		return decimal.Zero, err
	}
	deficit, err := have.Deficit(need)
	if err != nil {
		return decimal.Zero, err
	}
	return deficit.Amount(), nil
}

// CheckMinimumStockLevels returns an alert for every warehouse holding a
// product below its configured minimum level. A nil warehouseID checks all
// warehouses.
func (s *StockLevelMonitor) CheckMinimumStockLevels(ctx context.Context, tenantID uuid.UUID, warehouseID *uuid.UUID) ([]StockAlert, error) {
	policies, err := s.catalog.ListStockPolicies(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var alerts []StockAlert
	for _, policy := range policies {
		if !policy.MinimumLevel.IsPositive() {
			continue
		}
		levels, order, err := s.levelsByWarehouse(ctx, tenantID, policy.ProductID, warehouseID)
		if err != nil {
			s.logger.Error("Failed to load product stock levels",
				zap.String("product_id", policy.ProductID.String()),
				zap.Error(err),
			)
			continue
		}
		for _, warehouse := range order {
			warehouse := warehouse
			level := levels[warehouse]
			if level.current.GreaterThanOrEqual(policy.MinimumLevel) {
				continue
			}
			shortage, err := alertShortage(level.current, policy.MinimumLevel, level.unit)
			if err != nil {
				return nil, err
			}

			alerts = append(alerts, StockAlert{
				AlertType:       AlertTypeBelowMinimum,
				ProductID:       policy.ProductID,
				WarehouseID:     &warehouse,
				CurrentQuantity: level.current,
				Threshold:       policy.MinimumLevel,
				Shortage:        shortage,
				SuggestedAction: "Replenish to minimum level",
				SupplierID:      policy.PreferredSupplier,
			})
			s.publish(ctx, stock.NewStockBelowMinimumEvent(tenantID, policy.ProductID, &warehouse, level.current, policy.MinimumLevel))
		}
	}

	if len(alerts) > 0 {
		s.logger.Warn("Stock below minimum level",
			zap.Int("count", len(alerts)),
		)
	}

	return alerts, nil
}

// CheckReorderPoints returns an alert for every warehouse where a product's
// available quantity has fallen to or below its reorder point. Available
// quantity is used rather than current quantity so open reservations count
// as already-committed stock. A nil warehouseID checks all warehouses.
func (s *StockLevelMonitor) CheckReorderPoints(ctx context.Context, tenantID uuid.UUID, warehouseID *uuid.UUID) ([]StockAlert, error) {
	policies, err := s.catalog.ListStockPolicies(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var alerts []StockAlert
	for _, policy := range policies {
		if !policy.ReorderPoint.IsPositive() {
			continue
		}
		levels, order, err := s.levelsByWarehouse(ctx, tenantID, policy.ProductID, warehouseID)
		if err != nil {
			s.logger.Error("Failed to load product stock levels",
				zap.String("product_id", policy.ProductID.String()),
				zap.Error(err),
			)
			continue
		}
		for _, warehouse := range order {
			warehouse := warehouse
			level := levels[warehouse]
			if level.available.GreaterThan(policy.ReorderPoint) {
				continue
			}
			shortage, err := alertShortage(level.available, policy.ReorderPoint, level.unit)
			if err != nil {
				return nil, err
			}

			action := "Reorder"
			if policy.ReorderQuantity.IsPositive() {
				action = "Reorder " + policy.ReorderQuantity.String()
			}
			alerts = append(alerts, StockAlert{
				AlertType:       AlertTypeReorderPoint,
				ProductID:       policy.ProductID,
				WarehouseID:     &warehouse,
				CurrentQuantity: level.available,
				Threshold:       policy.ReorderPoint,
				Shortage:        shortage,
				SuggestedAction: action,
				SupplierID:      policy.PreferredSupplier,
			})
		}
	}

	return alerts, nil
}

// CheckExpiringStocks returns an alert for every lot that still holds stock
// and expires within the warning window. Lots are tracked per product, not
// per warehouse; a non-nil warehouseID keeps only lots with stock on a line
// in that warehouse.
func (s *StockLevelMonitor) CheckExpiringStocks(ctx context.Context, tenantID uuid.UUID, withinDays int, warehouseID *uuid.UUID) ([]StockAlert, error) {
	if withinDays <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Warning window must be positive")
	}

	now := s.clock.Now()
	batches, err := s.lotRepo.FindExpiringSoon(ctx, tenantID, now, withinDays, shared.Filter{})
	if err != nil {
		return nil, err
	}

	var held map[uuid.UUID]map[string]bool
	if warehouseID != nil {
		held, err = s.lotsHeldInWarehouse(ctx, tenantID, *warehouseID)
		if err != nil {
			return nil, err
		}
	}

	var alerts []StockAlert
	for i := range batches {
		b := &batches[i]
		days, ok := b.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		if held != nil && !held[b.ProductID][b.LotNumber] {
			continue
		}

		alerts = append(alerts, StockAlert{
			AlertType:       AlertTypeExpiringLot,
			ProductID:       b.ProductID,
			WarehouseID:     warehouseID,
			LotNumber:       b.LotNumber,
			CurrentQuantity: b.CurrentQuantity,
			Threshold:       decimal.NewFromInt(int64(withinDays)),
			SuggestedAction: "Sell or dispose before expiry",
			DaysUntilExpiry: &days,
		})
		s.publish(ctx, stock.NewLotExpiringEvent(b, days))
	}

	return alerts, nil
}

// lotsHeldInWarehouse maps product to the lot numbers with stock on hand in
// the given warehouse
func (s *StockLevelMonitor) lotsHeldInWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (map[uuid.UUID]map[string]bool, error) {
	lines, err := s.lineRepo.FindByWarehouse(ctx, tenantID, warehouseID, shared.Filter{})
	if err != nil {
		return nil, err
	}
	held := make(map[uuid.UUID]map[string]bool)
	for i := range lines {
		line := &lines[i]
		if line.LotNumber == "" || !line.CurrentQuantity.IsPositive() {
			continue
		}
		if held[line.ProductID] == nil {
			held[line.ProductID] = make(map[string]bool)
		}
		held[line.ProductID][line.LotNumber] = true
	}
	return held, nil
}

// GetProductTotalStock returns a product's total and available quantity,
// either across all warehouses or within one
func (s *StockLevelMonitor) GetProductTotalStock(ctx context.Context, tenantID, productID uuid.UUID, warehouseID *uuid.UUID) (total, available decimal.Decimal, err error) {
	if warehouseID == nil {
		total, err = s.lineRepo.SumQuantityByProduct(ctx, tenantID, productID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		available, err = s.lineRepo.SumAvailableByProduct(ctx, tenantID, productID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return total, available, nil
	}

	levels, _, err := s.levelsByWarehouse(ctx, tenantID, productID, warehouseID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	level := levels[*warehouseID]
	if level.current.IsZero() && level.available.IsZero() {
		return decimal.Zero, decimal.Zero, nil
	}
	return level.current, level.available, nil
}

// CalculateWarehouseStockValue returns the total inventory value held in a
// warehouse, valued at each line's weighted average cost
func (s *StockLevelMonitor) CalculateWarehouseStockValue(ctx context.Context, tenantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	return s.lineRepo.SumValueByWarehouse(ctx, tenantID, warehouseID)
}

// CalculateTotalStockValue returns the total inventory value across all
// warehouses
func (s *StockLevelMonitor) CalculateTotalStockValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	warehouseIDs, err := s.warehouses.ListWarehouseIDs(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, warehouseID := range warehouseIDs {
		value, err := s.lineRepo.SumValueByWarehouse(ctx, tenantID, warehouseID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(value)
	}
	return total, nil
}
