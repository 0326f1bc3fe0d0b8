package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLotBatchRepository implements LotBatchRepository using GORM
type GormLotBatchRepository struct {
	db *gorm.DB
}

// NewGormLotBatchRepository creates a new GormLotBatchRepository
func NewGormLotBatchRepository(db *gorm.DB) *GormLotBatchRepository {
	return &GormLotBatchRepository{db: db}
}

// FindByID finds a lot by its ID
func (r *GormLotBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.LotBatch, error) {
	var batch stock.LotBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByIDForTenant finds a lot by ID within a tenant
func (r *GormLotBatchRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*stock.LotBatch, error) {
	var batch stock.LotBatch
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByLotNumber finds a lot by product and lot number
func (r *GormLotBatchRepository) FindByLotNumber(ctx context.Context, tenantID, productID uuid.UUID, lotNumber string) (*stock.LotBatch, error) {
	var batch stock.LotBatch
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND lot_number = ?", tenantID, productID, lotNumber).
		First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByProduct finds all lots for a product
func (r *GormLotBatchRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.LotBatch, error) {
	var batches []stock.LotBatch
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.LotBatch{}).
			Where("tenant_id = ? AND product_id = ?", tenantID, productID),
		filter,
	)

	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindReservable finds Active lots with available quantity for a product,
// earliest expiry first so allocation naturally drains short-dated stock
func (r *GormLotBatchRepository) FindReservable(ctx context.Context, tenantID, productID uuid.UUID) ([]stock.LotBatch, error) {
	var batches []stock.LotBatch
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND status = ? AND current_quantity - reserved_quantity > 0",
			tenantID, productID, stock.LotBatchStatusActive).
		Order("expiry_date ASC NULLS LAST").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindExpiringSoon finds non-depleted lots expiring within a number of days
func (r *GormLotBatchRepository) FindExpiringSoon(ctx context.Context, tenantID uuid.UUID, asOf time.Time, withinDays int, filter shared.Filter) ([]stock.LotBatch, error) {
	cutoff := asOf.AddDate(0, 0, withinDays)

	var batches []stock.LotBatch
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.LotBatch{}).
			Where("tenant_id = ? AND expiry_date IS NOT NULL AND expiry_date > ? AND expiry_date <= ? AND current_quantity > 0",
				tenantID, asOf, cutoff).
			Where("status NOT IN ?", []stock.LotBatchStatus{
				stock.LotBatchStatusDepleted,
				stock.LotBatchStatusRecalled,
			}),
		filter,
	)

	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindExpired finds lots past their expiry date that still hold stock and
// have not been marked Expired or Recalled yet
func (r *GormLotBatchRepository) FindExpired(ctx context.Context, tenantID uuid.UUID, asOf time.Time, filter shared.Filter) ([]stock.LotBatch, error) {
	var batches []stock.LotBatch
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.LotBatch{}).
			Where("tenant_id = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", tenantID, asOf).
			Where("status NOT IN ?", []stock.LotBatchStatus{
				stock.LotBatchStatusExpired,
				stock.LotBatchStatusRecalled,
			}),
		filter,
	)

	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindByStatus finds lots in a given status
func (r *GormLotBatchRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status stock.LotBatchStatus, filter shared.Filter) ([]stock.LotBatch, error) {
	var batches []stock.LotBatch
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.LotBatch{}).
			Where("tenant_id = ? AND status = ?", tenantID, status),
		filter,
	)

	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// Save creates or updates a lot
func (r *GormLotBatchRepository) Save(ctx context.Context, batch *stock.LotBatch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormLotBatchRepository) SaveWithLock(ctx context.Context, batch *stock.LotBatch) error {
	result := r.db.WithContext(ctx).
		Model(batch).
		Where("id = ? AND version = ?", batch.ID, batch.Version-1).
		Updates(map[string]interface{}{
			"status":            batch.Status,
			"current_quantity":  batch.CurrentQuantity,
			"reserved_quantity": batch.ReservedQuantity,
			"quarantine_reason": batch.QuarantineReason,
			"version":           batch.Version,
			"updated_at":        batch.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountForTenant counts lots matching the filter
func (r *GormLotBatchRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&stock.LotBatch{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormLotBatchRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, LotBatchSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormLotBatchRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "supplier_id":
			query = query.Where("supplier_id = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("current_quantity > 0")
			}
		}
	}

	return query
}

// Ensure GormLotBatchRepository implements LotBatchRepository
var _ stock.LotBatchRepository = (*GormLotBatchRepository)(nil)
