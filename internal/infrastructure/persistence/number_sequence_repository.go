package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NumberSequence is a per-tenant per-prefix counter row backing document
// number generation
type NumberSequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Prefix    string    `gorm:"type:varchar(10);primaryKey"`
	NextValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (NumberSequence) TableName() string {
	return "number_sequences"
}

// GormNumberSequenceRepository implements NumberSequenceRepository using an
// atomic upsert. The counter row is incremented inside the caller's posting
// transaction, so a rollback burns the number; numbers stay unique and
// monotonically increasing but may have gaps.
type GormNumberSequenceRepository struct {
	db *gorm.DB
}

// NewGormNumberSequenceRepository creates a new GormNumberSequenceRepository
func NewGormNumberSequenceRepository(db *gorm.DB) *GormNumberSequenceRepository {
	return &GormNumberSequenceRepository{db: db}
}

// Next returns the next formatted number for the prefix, e.g. IN-000042
func (r *GormNumberSequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO number_sequences (tenant_id, prefix, next_value, updated_at)
		 VALUES (?, ?, 1, NOW())
		 ON CONFLICT (tenant_id, prefix)
		 DO UPDATE SET next_value = number_sequences.next_value + 1, updated_at = NOW()
		 RETURNING next_value`,
		tenantID, prefix,
	).Scan(&next).Error
	if err != nil {
		return "", fmt.Errorf("failed to advance number sequence %s: %w", prefix, err)
	}

	return fmt.Sprintf("%s-%06d", prefix, next), nil
}

// Ensure GormNumberSequenceRepository implements NumberSequenceRepository
var _ stock.NumberSequenceRepository = (*GormNumberSequenceRepository)(nil)
