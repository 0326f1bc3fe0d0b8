package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormConsignmentRepository implements ConsignmentStockRepository using GORM
type GormConsignmentRepository struct {
	db *gorm.DB
}

// NewGormConsignmentRepository creates a new GormConsignmentRepository
func NewGormConsignmentRepository(db *gorm.DB) *GormConsignmentRepository {
	return &GormConsignmentRepository{db: db}
}

// FindByID finds a consignment record by its ID
func (r *GormConsignmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.ConsignmentStock, error) {
	var consignment stock.ConsignmentStock
	if err := r.db.WithContext(ctx).First(&consignment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &consignment, nil
}

// FindByIDForTenant finds a consignment record by ID within a tenant
func (r *GormConsignmentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*stock.ConsignmentStock, error) {
	var consignment stock.ConsignmentStock
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&consignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &consignment, nil
}

// FindByAgreementNumber finds a consignment record by its agreement number
func (r *GormConsignmentRepository) FindByAgreementNumber(ctx context.Context, tenantID uuid.UUID, agreementNumber string) (*stock.ConsignmentStock, error) {
	var consignment stock.ConsignmentStock
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND agreement_number = ?", tenantID, agreementNumber).
		First(&consignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &consignment, nil
}

// FindBySupplier finds consignment records for a supplier
func (r *GormConsignmentRepository) FindBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID, filter shared.Filter) ([]stock.ConsignmentStock, error) {
	var consignments []stock.ConsignmentStock
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.ConsignmentStock{}).
			Where("tenant_id = ? AND supplier_id = ?", tenantID, supplierID),
		filter,
	)

	if err := query.Find(&consignments).Error; err != nil {
		return nil, err
	}
	return consignments, nil
}

// FindDueForReconciliation finds active records whose next reconciliation date passed
func (r *GormConsignmentRepository) FindDueForReconciliation(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]stock.ConsignmentStock, error) {
	var consignments []stock.ConsignmentStock
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND next_reconciliation_date <= ?",
			tenantID, stock.ConsignmentStatusActive, asOf).
		Order("next_reconciliation_date ASC").
		Find(&consignments).Error; err != nil {
		return nil, err
	}
	return consignments, nil
}

// FindActiveForTenant finds all active consignment records for a tenant
func (r *GormConsignmentRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.ConsignmentStock, error) {
	var consignments []stock.ConsignmentStock
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.ConsignmentStock{}).
			Where("tenant_id = ? AND status = ?", tenantID, stock.ConsignmentStatusActive),
		filter,
	)

	if err := query.Find(&consignments).Error; err != nil {
		return nil, err
	}
	return consignments, nil
}

// Save creates or updates a consignment record
func (r *GormConsignmentRepository) Save(ctx context.Context, consignment *stock.ConsignmentStock) error {
	return r.db.WithContext(ctx).Save(consignment).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormConsignmentRepository) SaveWithLock(ctx context.Context, consignment *stock.ConsignmentStock) error {
	result := r.db.WithContext(ctx).
		Model(consignment).
		Where("id = ? AND version = ?", consignment.ID, consignment.Version-1).
		Updates(map[string]interface{}{
			"status":                   consignment.Status,
			"current_quantity":         consignment.CurrentQuantity,
			"sold_quantity":            consignment.SoldQuantity,
			"returned_quantity":        consignment.ReturnedQuantity,
			"damaged_quantity":         consignment.DamagedQuantity,
			"total_sales_amount":       consignment.TotalSalesAmount,
			"paid_amount":              consignment.PaidAmount,
			"last_reconciled_at":       consignment.LastReconciledAt,
			"next_reconciliation_date": consignment.NextReconciliationDate,
			"version":                  consignment.Version,
			"updated_at":               consignment.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SumOutstandingBySupplier sums the outstanding payable owed to a supplier
func (r *GormConsignmentRepository) SumOutstandingBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&stock.ConsignmentStock{}).
		Select("COALESCE(SUM(total_sales_amount - paid_amount), 0) as total").
		Where("tenant_id = ? AND supplier_id = ?", tenantID, supplierID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyFilter applies filter options to the query
func (r *GormConsignmentRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, ConsignmentSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// Ensure GormConsignmentRepository implements ConsignmentStockRepository
var _ stock.ConsignmentStockRepository = (*GormConsignmentRepository)(nil)
