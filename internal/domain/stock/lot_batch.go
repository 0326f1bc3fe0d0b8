package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotBatchStatus represents the lifecycle state of a lot
type LotBatchStatus string

const (
	LotBatchStatusActive      LotBatchStatus = "ACTIVE"
	LotBatchStatusQuarantined LotBatchStatus = "QUARANTINED"
	LotBatchStatusExpired     LotBatchStatus = "EXPIRED"
	LotBatchStatusDepleted    LotBatchStatus = "DEPLETED"
	LotBatchStatusRecalled    LotBatchStatus = "RECALLED"
)

// String returns the string representation of LotBatchStatus
func (s LotBatchStatus) String() string {
	return string(s)
}

// LotBatch tracks the lifecycle of a named lot of a product: quantities,
// expiry and quarantine state. Quantity is maintained incrementally so that
// current = initial - consumed + received always holds.
//
// Quarantine blocks reservation and fulfillment against the lot without
// changing any quantity field. Allocation callers MUST filter quarantined
// lots explicitly (use LotBatchRepository.FindReservable); the quantity
// arithmetic does not do it for them.
type LotBatch struct {
	shared.TenantAggregateRoot
	LotNumber         string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_lot_product_number,priority:3"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_lot_product_number,priority:2"`
	SupplierID        *uuid.UUID      `gorm:"type:uuid"`
	SupplierLotNumber string          `gorm:"type:varchar(50)"`
	Status            LotBatchStatus  `gorm:"type:varchar(20);not null;index"`
	ManufacturedDate  *time.Time      `gorm:"type:date"`
	ExpiryDate        *time.Time      `gorm:"type:date;index"`
	InitialQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CurrentQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReservedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitOfMeasure     string          `gorm:"type:varchar(20)"`
	QuarantineReason  string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (LotBatch) TableName() string {
	return "lot_batches"
}

// NewLotBatch creates a lot on first receipt
func NewLotBatch(
	tenantID, productID uuid.UUID,
	lotNumber string,
	quantity decimal.Decimal,
	manufacturedDate, expiryDate *time.Time,
) (*LotBatch, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product ID cannot be empty")
	}
	if lotNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Lot number cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if manufacturedDate != nil && expiryDate != nil && expiryDate.Before(*manufacturedDate) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Expiry date cannot precede manufactured date")
	}

	return &LotBatch{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LotNumber:           lotNumber,
		ProductID:           productID,
		Status:              LotBatchStatusActive,
		ManufacturedDate:    manufacturedDate,
		ExpiryDate:          expiryDate,
		InitialQuantity:     quantity,
		CurrentQuantity:     quantity,
		ReservedQuantity:    decimal.Zero,
	}, nil
}

// AvailableQuantity is the lot quantity not held by reservations
func (b *LotBatch) AvailableQuantity() decimal.Decimal {
	return b.CurrentQuantity.Sub(b.ReservedQuantity)
}

// IsQuarantined returns true while the lot is blocked from allocation
func (b *LotBatch) IsQuarantined() bool {
	return b.Status == LotBatchStatusQuarantined
}

// IsExpired returns true if the lot's expiry date has passed
func (b *LotBatch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}

// DaysUntilExpiry returns whole days until expiry, negative once expired,
// and -1 with ok=false when the lot has no expiry date
func (b *LotBatch) DaysUntilExpiry(now time.Time) (int, bool) {
	if b.ExpiryDate == nil {
		return -1, false
	}
	return int(b.ExpiryDate.Sub(now).Hours() / 24), true
}

// RemainingShelfLifePercent returns the percentage of shelf life left,
// computed from manufactured and expiry dates. Returns 0 with ok=false when
// either date is missing.
func (b *LotBatch) RemainingShelfLifePercent(now time.Time) (decimal.Decimal, bool) {
	if b.ManufacturedDate == nil || b.ExpiryDate == nil {
		return decimal.Zero, false
	}
	total := b.ExpiryDate.Sub(*b.ManufacturedDate)
	if total <= 0 {
		return decimal.Zero, true
	}
	remaining := b.ExpiryDate.Sub(now)
	if remaining <= 0 {
		return decimal.Zero, true
	}
	pct := decimal.NewFromFloat(remaining.Hours()).
		Div(decimal.NewFromFloat(total.Hours())).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return pct, true
}

// Receive tops up the lot with another receipt of the same lot number
func (b *LotBatch) Receive(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	switch b.Status {
	case LotBatchStatusActive, LotBatchStatusDepleted:
	default:
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			"Cannot receive into a lot in status "+b.Status.String())
	}

	b.InitialQuantity = b.InitialQuantity.Add(quantity)
	b.CurrentQuantity = b.CurrentQuantity.Add(quantity)
	b.Status = LotBatchStatusActive
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// Consume drives the lot quantity down for an outgoing movement scoped to
// this lot. A lot consumed to zero becomes Depleted.
func (b *LotBatch) Consume(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if b.Status == LotBatchStatusRecalled {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Cannot consume from a recalled lot")
	}
	if quantity.GreaterThan(b.CurrentQuantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Lot does not hold the requested quantity")
	}

	b.CurrentQuantity = b.CurrentQuantity.Sub(quantity)
	if b.CurrentQuantity.IsZero() && !b.IsQuarantined() {
		b.Status = LotBatchStatusDepleted
	}
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// Reserve earmarks lot quantity for an allocation
func (b *LotBatch) Reserve(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if b.Status != LotBatchStatusActive {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			"Cannot reserve against a lot in status "+b.Status.String())
	}
	if quantity.GreaterThan(b.AvailableQuantity()) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Lot does not have the requested available quantity")
	}

	b.ReservedQuantity = b.ReservedQuantity.Add(quantity)
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// ReleaseReserved returns earmarked lot quantity to available
func (b *LotBatch) ReleaseReserved(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if quantity.GreaterThan(b.ReservedQuantity) {
		return shared.NewDomainError("INTEGRITY_ERROR", "Release exceeds reserved lot quantity")
	}

	b.ReservedQuantity = b.ReservedQuantity.Sub(quantity)
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// Quarantine blocks the lot from allocation without changing quantities
func (b *LotBatch) Quarantine(reason string) error {
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Quarantine reason is required")
	}
	switch b.Status {
	case LotBatchStatusActive, LotBatchStatusExpired:
	default:
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			"Cannot quarantine a lot in status "+b.Status.String())
	}

	b.Status = LotBatchStatusQuarantined
	b.QuarantineReason = reason
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// ReleaseFromQuarantine returns the lot to Active (or Depleted when empty)
func (b *LotBatch) ReleaseFromQuarantine() error {
	if b.Status != LotBatchStatusQuarantined {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Lot is not quarantined")
	}

	b.Status = LotBatchStatusActive
	if b.CurrentQuantity.IsZero() {
		b.Status = LotBatchStatusDepleted
	}
	b.QuarantineReason = ""
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// MarkExpired transitions the lot to Expired once its expiry date passed
func (b *LotBatch) MarkExpired(now time.Time) error {
	if !b.IsExpired(now) {
		return shared.NewDomainError("VALIDATION_ERROR", "Lot has not reached its expiry date")
	}
	if b.Status == LotBatchStatusRecalled {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Cannot expire a recalled lot")
	}

	b.Status = LotBatchStatusExpired
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// Recall is terminal: a recalled lot can never be consumed or reactivated
func (b *LotBatch) Recall(reason string) error {
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Recall reason is required")
	}
	if b.Status == LotBatchStatusRecalled {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Lot is already recalled")
	}

	b.Status = LotBatchStatusRecalled
	b.QuarantineReason = reason
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}
