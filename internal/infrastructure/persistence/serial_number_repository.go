package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSerialNumberRepository implements SerialNumberRepository using GORM
type GormSerialNumberRepository struct {
	db *gorm.DB
}

// NewGormSerialNumberRepository creates a new GormSerialNumberRepository
func NewGormSerialNumberRepository(db *gorm.DB) *GormSerialNumberRepository {
	return &GormSerialNumberRepository{db: db}
}

// FindByID finds a serial by its ID
func (r *GormSerialNumberRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.SerialNumber, error) {
	var serial stock.SerialNumber
	if err := r.db.WithContext(ctx).First(&serial, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &serial, nil
}

// FindByIDForTenant finds a serial by ID within a tenant
func (r *GormSerialNumberRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*stock.SerialNumber, error) {
	var serial stock.SerialNumber
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &serial, nil
}

// FindBySerial finds a serial by product and serial string
func (r *GormSerialNumberRepository) FindBySerial(ctx context.Context, tenantID, productID uuid.UUID, serialNo string) (*stock.SerialNumber, error) {
	var serial stock.SerialNumber
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND serial = ?", tenantID, productID, serialNo).
		First(&serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &serial, nil
}

// FindByProduct finds all serials for a product
func (r *GormSerialNumberRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.SerialNumber, error) {
	var serials []stock.SerialNumber
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.SerialNumber{}).
			Where("tenant_id = ? AND product_id = ?", tenantID, productID),
		filter,
	)

	if err := query.Find(&serials).Error; err != nil {
		return nil, err
	}
	return serials, nil
}

// FindByStatus finds serials in a given status
func (r *GormSerialNumberRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status stock.SerialStatus, filter shared.Filter) ([]stock.SerialNumber, error) {
	var serials []stock.SerialNumber
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.SerialNumber{}).
			Where("tenant_id = ? AND status = ?", tenantID, status),
		filter,
	)

	if err := query.Find(&serials).Error; err != nil {
		return nil, err
	}
	return serials, nil
}

// FindByCustomer finds serials sold to a customer
func (r *GormSerialNumberRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, filter shared.Filter) ([]stock.SerialNumber, error) {
	var serials []stock.SerialNumber
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.SerialNumber{}).
			Where("tenant_id = ? AND customer_id = ?", tenantID, customerID),
		filter,
	)

	if err := query.Find(&serials).Error; err != nil {
		return nil, err
	}
	return serials, nil
}

// FindInStockByProduct finds sellable serials for a product in a warehouse
func (r *GormSerialNumberRepository) FindInStockByProduct(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, limit int) ([]stock.SerialNumber, error) {
	var serials []stock.SerialNumber
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ? AND status = ?",
			tenantID, productID, warehouseID, stock.SerialStatusInStock).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&serials).Error; err != nil {
		return nil, err
	}
	return serials, nil
}

// ExistsBySerial checks whether a serial is already registered for a product
func (r *GormSerialNumberRepository) ExistsBySerial(ctx context.Context, tenantID, productID uuid.UUID, serialNo string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&stock.SerialNumber{}).
		Where("tenant_id = ? AND product_id = ? AND serial = ?", tenantID, productID, serialNo).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a serial
func (r *GormSerialNumberRepository) Save(ctx context.Context, serial *stock.SerialNumber) error {
	return r.db.WithContext(ctx).Save(serial).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormSerialNumberRepository) SaveWithLock(ctx context.Context, serial *stock.SerialNumber) error {
	result := r.db.WithContext(ctx).
		Model(serial).
		Where("id = ? AND version = ?", serial.ID, serial.Version-1).
		Updates(map[string]interface{}{
			"status":              serial.Status,
			"warehouse_id":        serial.WarehouseID,
			"lot_number":          serial.LotNumber,
			"warranty_start_date": serial.WarrantyStartDate,
			"warranty_end_date":   serial.WarrantyEndDate,
			"customer_id":         serial.CustomerID,
			"sales_order_id":      serial.SalesOrderID,
			"status_reason":       serial.StatusReason,
			"version":             serial.Version,
			"updated_at":          serial.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountByStatus counts serials by status for a product
func (r *GormSerialNumberRepository) CountByStatus(ctx context.Context, tenantID, productID uuid.UUID, status stock.SerialStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&stock.SerialNumber{}).
		Where("tenant_id = ? AND product_id = ? AND status = ?", tenantID, productID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormSerialNumberRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "lot_number":
			query = query.Where("lot_number = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, SerialNumberSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// Ensure GormSerialNumberRepository implements SerialNumberRepository
var _ stock.SerialNumberRepository = (*GormSerialNumberRepository)(nil)
