package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLine is the quantity record for a product at a warehouse, optionally
// narrowed to a location and a lot. It is the aggregate root for every
// quantity-changing operation and the unit of contention for concurrency:
// movements and reservations against the same line are serialized through
// its optimistic version, lines never share a lock.
//
// Lines are created implicitly on the first movement referencing the
// coordinate and are never deleted, only driven to zero.
type StockLine struct {
	shared.TenantAggregateRoot
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_line_coord,priority:2"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_line_coord,priority:3"`
	LocationID       *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_stock_line_coord,priority:4"`
	LotNumber        string          `gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_stock_line_coord,priority:5"`
	CurrentQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Physically present
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Held by open reservations
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Moving weighted average
	UnitOfMeasure    string          `gorm:"type:varchar(20);not null;default:''"`
}

// TableName returns the table name for GORM
func (StockLine) TableName() string {
	return "stock_lines"
}

// NewStockLine creates an empty stock line for a coordinate
func NewStockLine(tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber, unitOfMeasure string) (*StockLine, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Warehouse ID cannot be empty")
	}

	return &StockLine{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		WarehouseID:         warehouseID,
		LocationID:          locationID,
		LotNumber:           lotNumber,
		CurrentQuantity:     decimal.Zero,
		ReservedQuantity:    decimal.Zero,
		UnitCost:            decimal.Zero,
		UnitOfMeasure:       unitOfMeasure,
	}, nil
}

// AvailableQuantity is what may be newly reserved or shipped right now.
// It is always derived, never stored.
func (l *StockLine) AvailableQuantity() decimal.Decimal {
	return l.CurrentQuantity.Sub(l.ReservedQuantity)
}

// TotalValue returns current quantity valued at the weighted-average cost
func (l *StockLine) TotalValue() decimal.Decimal {
	return l.CurrentQuantity.Mul(l.UnitCost)
}

// CanFulfill returns true if the available quantity covers the requested quantity
func (l *StockLine) CanFulfill(quantity decimal.Decimal) bool {
	return l.AvailableQuantity().GreaterThanOrEqual(quantity)
}

// applyDelta is the single enforcement point for the conservation invariant.
// Every public mutation funnels through here: currentQuantity and
// reservedQuantity stay non-negative, and reservedQuantity never exceeds
// currentQuantity unless the caller explicitly opted into a permissive
// physical-count correction (allowReservedDeficit).
func (l *StockLine) applyDelta(currentDelta, reservedDelta decimal.Decimal, allowReservedDeficit bool) error {
	newCurrent := l.CurrentQuantity.Add(currentDelta)
	newReserved := l.ReservedQuantity.Add(reservedDelta)

	if newCurrent.IsNegative() {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Operation would drive current quantity negative")
	}
	if newReserved.IsNegative() {
		return shared.NewDomainError("INTEGRITY_ERROR", "Operation would drive reserved quantity negative")
	}
	if newReserved.GreaterThan(newCurrent) && !allowReservedDeficit {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Operation would reduce available quantity below zero")
	}

	l.CurrentQuantity = newCurrent
	l.ReservedQuantity = newReserved
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// Receive increases current quantity and recomputes the weighted-average
// unit cost: (oldQty*oldCost + inQty*inCost) / (oldQty + inQty).
func (l *StockLine) Receive(quantity, unitCost decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if unitCost.IsNegative() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unit cost cannot be negative")
	}

	oldQuantity := l.CurrentQuantity
	oldCost := l.UnitCost

	if err := l.applyDelta(quantity, decimal.Zero, false); err != nil {
		return err
	}

	if oldQuantity.IsZero() {
		l.UnitCost = unitCost
	} else {
		totalValue := oldQuantity.Mul(oldCost).Add(quantity.Mul(unitCost))
		l.UnitCost = totalValue.Div(oldQuantity.Add(quantity)).Round(4)
	}
	return nil
}

// Issue decreases current quantity for fulfillment-grade outgoing movements.
// It refuses to cut into quantity held by open reservations.
func (l *StockLine) Issue(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	return l.applyDelta(quantity.Neg(), decimal.Zero, false)
}

// IssueCorrection decreases current quantity for physical-count corrections.
// Unlike Issue it may reduce the line below the reserved floor; the count is
// physical truth and over-committed reservations are the caller's problem to
// resolve. Current quantity still cannot go negative.
func (l *StockLine) IssueCorrection(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	return l.applyDelta(quantity.Neg(), decimal.Zero, true)
}

// Reserve earmarks available quantity for a reservation without moving stock
func (l *StockLine) Reserve(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	return l.applyDelta(decimal.Zero, quantity, false)
}

// ReleaseReserved returns earmarked quantity to available (cancellation,
// expiration, or the unfulfilled remainder of a fulfilled reservation)
func (l *StockLine) ReleaseReserved(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	return l.applyDelta(decimal.Zero, quantity.Neg(), false)
}

// ConsumeReserved releases earmarked quantity on fulfillment. It only drops
// the reservation hold; the paired Outgoing movement posts the physical
// decrement separately.
func (l *StockLine) ConsumeReserved(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	return l.applyDelta(decimal.Zero, quantity.Neg(), false)
}

// CheckUnit validates that a movement or reservation quantity is expressed in
// the line's unit of measure. A line created without a unit adopts the first
// unit it sees.
func (l *StockLine) CheckUnit(unit string) error {
	if l.UnitOfMeasure == "" {
		l.UnitOfMeasure = unit
		return nil
	}
	if unit != "" && unit != l.UnitOfMeasure {
		return shared.NewDomainError("VALIDATION_ERROR",
			"Quantity unit "+unit+" does not match stock line unit "+l.UnitOfMeasure)
	}
	return nil
}
