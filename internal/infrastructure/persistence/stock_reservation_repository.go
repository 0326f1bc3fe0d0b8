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

// GormStockReservationRepository implements StockReservationRepository using GORM
type GormStockReservationRepository struct {
	db *gorm.DB
}

// NewGormStockReservationRepository creates a new GormStockReservationRepository
func NewGormStockReservationRepository(db *gorm.DB) *GormStockReservationRepository {
	return &GormStockReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormStockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockReservation, error) {
	var reservation stock.StockReservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// FindByIDForTenant finds a reservation by ID within a tenant
func (r *GormStockReservationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*stock.StockReservation, error) {
	var reservation stock.StockReservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// FindByReservationNumber finds a reservation by its number
func (r *GormStockReservationRepository) FindByReservationNumber(ctx context.Context, tenantID uuid.UUID, reservationNumber string) (*stock.StockReservation, error) {
	var reservation stock.StockReservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reservation_number = ?", tenantID, reservationNumber).
		First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// FindByStockLine finds reservations against a stock line
func (r *GormStockReservationRepository) FindByStockLine(ctx context.Context, stockLineID uuid.UUID, filter shared.Filter) ([]stock.StockReservation, error) {
	var reservations []stock.StockReservation
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockReservation{}).
			Where("stock_line_id = ?", stockLineID),
		filter,
	)

	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindOpenByStockLine finds non-terminal reservations against a stock line
func (r *GormStockReservationRepository) FindOpenByStockLine(ctx context.Context, stockLineID uuid.UUID) ([]stock.StockReservation, error) {
	var reservations []stock.StockReservation
	if err := r.db.WithContext(ctx).
		Where("stock_line_id = ? AND status IN ?", stockLineID, []stock.ReservationStatus{
			stock.ReservationStatusPending,
			stock.ReservationStatusPartiallyFulfilled,
		}).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindByReference finds reservations held for an external document
func (r *GormStockReservationRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, refType, refNumber string) ([]stock.StockReservation, error) {
	var reservations []stock.StockReservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_document_type = ? AND reference_document_number = ?",
			tenantID, refType, refNumber).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindByStatus finds reservations in a given status
func (r *GormStockReservationRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status stock.ReservationStatus, filter shared.Filter) ([]stock.StockReservation, error) {
	var reservations []stock.StockReservation
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockReservation{}).
			Where("tenant_id = ? AND status = ?", tenantID, status),
		filter,
	)

	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired finds non-terminal reservations whose expiration date passed.
// The sweep runs across tenants; the limit bounds each batch.
func (r *GormStockReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]stock.StockReservation, error) {
	var reservations []stock.StockReservation
	query := r.db.WithContext(ctx).
		Where("status IN ? AND expiration_date IS NOT NULL AND expiration_date <= ?",
			[]stock.ReservationStatus{
				stock.ReservationStatusPending,
				stock.ReservationStatusPartiallyFulfilled,
			}, asOf).
		Order("expiration_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// Save creates or updates a reservation
func (r *GormStockReservationRepository) Save(ctx context.Context, reservation *stock.StockReservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormStockReservationRepository) SaveWithLock(ctx context.Context, reservation *stock.StockReservation) error {
	result := r.db.WithContext(ctx).
		Model(reservation).
		Where("id = ? AND version = ?", reservation.ID, reservation.Version-1).
		Updates(map[string]interface{}{
			"status":             reservation.Status,
			"fulfilled_quantity": reservation.FulfilledQuantity,
			"expiration_date":    reservation.ExpirationDate,
			"notes":              reservation.Notes,
			"fulfilled_at":       reservation.FulfilledAt,
			"cancelled_at":       reservation.CancelledAt,
			"cancelled_by":       reservation.CancelledBy,
			"version":            reservation.Version,
			"updated_at":         reservation.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountForTenant counts reservations matching the filter
func (r *GormStockReservationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&stock.StockReservation{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormStockReservationRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, StockReservationSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormStockReservationRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "warehouse_id":
			query = query.Where("warehouse_id = ?", value)
		case "reservation_type":
			query = query.Where("reservation_type = ?", value)
		case "reference_type":
			query = query.Where("reference_document_type = ?", value)
		}
	}

	return query
}

// Ensure GormStockReservationRepository implements StockReservationRepository
var _ stock.StockReservationRepository = (*GormStockReservationRepository)(nil)
