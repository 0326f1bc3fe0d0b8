package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLineRepository implements StockLineRepository using GORM
type GormStockLineRepository struct {
	db *gorm.DB
}

// NewGormStockLineRepository creates a new GormStockLineRepository
func NewGormStockLineRepository(db *gorm.DB) *GormStockLineRepository {
	return &GormStockLineRepository{db: db}
}

// FindByID finds a stock line by its ID
func (r *GormStockLineRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockLine, error) {
	var line stock.StockLine
	if err := r.db.WithContext(ctx).First(&line, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// FindByIDForTenant finds a stock line by ID within a tenant
func (r *GormStockLineRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*stock.StockLine, error) {
	var line stock.StockLine
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// FindByCoordinate finds the line for a product/warehouse/location/lot coordinate
func (r *GormStockLineRepository) FindByCoordinate(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*stock.StockLine, error) {
	var line stock.StockLine
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ? AND lot_number = ?",
			tenantID, productID, warehouseID, lotNumber)
	if locationID == nil {
		query = query.Where("location_id IS NULL")
	} else {
		query = query.Where("location_id = ?", *locationID)
	}

	if err := query.First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// FindByProduct finds all lines for a product across warehouses
func (r *GormStockLineRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	var lines []stock.StockLine
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockLine{}).
			Where("tenant_id = ? AND product_id = ?", tenantID, productID),
		filter,
	)

	if err := query.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindByWarehouse finds all lines in a warehouse
func (r *GormStockLineRepository) FindByWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	var lines []stock.StockLine
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockLine{}).
			Where("tenant_id = ? AND warehouse_id = ?", tenantID, warehouseID),
		filter,
	)

	if err := query.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindAllForTenant finds all lines for a tenant
func (r *GormStockLineRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	var lines []stock.StockLine
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockLine{}).
			Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindWithStock finds lines with positive current quantity
func (r *GormStockLineRepository) FindWithStock(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	var lines []stock.StockLine
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockLine{}).
			Where("tenant_id = ? AND current_quantity > 0", tenantID),
		filter,
	)

	if err := query.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// Save creates or updates a stock line
func (r *GormStockLineRepository) Save(ctx context.Context, line *stock.StockLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// SaveWithLock saves with optimistic locking (checks version).
// A zero-row update means another transaction won the version race; the
// caller's retry loop re-reads and reapplies.
func (r *GormStockLineRepository) SaveWithLock(ctx context.Context, line *stock.StockLine) error {
	result := r.db.WithContext(ctx).
		Model(line).
		Where("id = ? AND version = ?", line.ID, line.Version-1).
		Updates(map[string]interface{}{
			"current_quantity":  line.CurrentQuantity,
			"reserved_quantity": line.ReservedQuantity,
			"unit_cost":         line.UnitCost,
			"unit_of_measure":   line.UnitOfMeasure,
			"version":           line.Version,
			"updated_at":        line.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GetOrCreate returns the line for a coordinate, creating an empty one if missing
func (r *GormStockLineRepository) GetOrCreate(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*stock.StockLine, error) {
	line, err := r.FindByCoordinate(ctx, tenantID, productID, warehouseID, locationID, lotNumber)
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	line, err = stock.NewStockLine(tenantID, productID, warehouseID, locationID, lotNumber, "")
	if err != nil {
		return nil, err
	}

	// ON CONFLICT handles two transactions racing to create the coordinate
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "product_id"}, {Name: "warehouse_id"},
				{Name: "location_id"}, {Name: "lot_number"},
			},
			DoNothing: true,
		}).
		Create(line)
	if result.Error != nil {
		return nil, result.Error
	}

	// Zero rows affected means the other transaction won; fetch its row
	if result.RowsAffected == 0 {
		return r.FindByCoordinate(ctx, tenantID, productID, warehouseID, locationID, lotNumber)
	}

	return line, nil
}

// SumQuantityByProduct sums current quantity for a product across all warehouses
func (r *GormStockLineRepository) SumQuantityByProduct(ctx context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&stock.StockLine{}).
		Select("COALESCE(SUM(current_quantity), 0) as total").
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumAvailableByProduct sums available quantity for a product across all warehouses
func (r *GormStockLineRepository) SumAvailableByProduct(ctx context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&stock.StockLine{}).
		Select("COALESCE(SUM(current_quantity - reserved_quantity), 0) as total").
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumValueByWarehouse sums current quantity times unit cost over a warehouse
func (r *GormStockLineRepository) SumValueByWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&stock.StockLine{}).
		Select("COALESCE(SUM(current_quantity * unit_cost), 0) as total").
		Where("tenant_id = ? AND warehouse_id = ?", tenantID, warehouseID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// CountForTenant counts lines matching the filter
func (r *GormStockLineRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&stock.StockLine{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormStockLineRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, StockLineSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormStockLineRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "lot_number":
			query = query.Where("lot_number = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("current_quantity > 0")
			}
		case "has_reservations":
			if value == true {
				query = query.Where("reserved_quantity > 0")
			}
		}
	}

	return query
}

// Ensure GormStockLineRepository implements StockLineRepository
var _ stock.StockLineRepository = (*GormStockLineRepository)(nil)
