package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantSource derives the set of active tenants from the stock lines
// table. A tenant with no stock lines has nothing to sweep.
type GormTenantSource struct {
	db *gorm.DB
}

// NewGormTenantSource creates a new GormTenantSource
func NewGormTenantSource(db *gorm.DB) *GormTenantSource {
	return &GormTenantSource{db: db}
}

// ListTenantIDs returns the distinct tenant IDs that own stock lines
func (s *GormTenantSource) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := s.db.WithContext(ctx).
		Model(&stock.StockLine{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// Ensure GormTenantSource implements TenantSource
var _ scheduler.TenantSource = (*GormTenantSource)(nil)
