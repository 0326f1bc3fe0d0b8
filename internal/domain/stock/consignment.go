package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsignmentStatus represents the lifecycle state of a consignment agreement
type ConsignmentStatus string

const (
	ConsignmentStatusActive ConsignmentStatus = "ACTIVE"
	ConsignmentStatusClosed ConsignmentStatus = "CLOSED"
)

// String returns the string representation of ConsignmentStatus
func (s ConsignmentStatus) String() string {
	return string(s)
}

// ConsignmentStock tracks supplier-owned stock held on the tenant's premises.
// The supplier retains ownership until sale; the tenant owes the supplier for
// sold units and settles periodically through reconciliation.
//
// Every unit is accounted for at all times:
//
//	initialQuantity = currentQuantity + soldQuantity + returnedQuantity + damagedQuantity
//
// Every mutation re-checks this identity and fails with an integrity error
// rather than persisting a drifted record.
type ConsignmentStock struct {
	shared.TenantAggregateRoot
	ProductID              uuid.UUID         `gorm:"type:uuid;not null;index"`
	SupplierID             uuid.UUID         `gorm:"type:uuid;not null;index"`
	WarehouseID            uuid.UUID         `gorm:"type:uuid;not null;index"`
	AgreementNumber        string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_consignment_agreement"`
	Status                 ConsignmentStatus `gorm:"type:varchar(20);not null"`
	InitialQuantity        decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	CurrentQuantity        decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	SoldQuantity           decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	ReturnedQuantity       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	DamagedQuantity        decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	UnitOfMeasure          string            `gorm:"type:varchar(20)"`
	UnitSalePrice          decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	TotalSalesAmount       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount             decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	ReconciliationDays     int               `gorm:"not null;default:30"`
	LastReconciledAt       *time.Time        `gorm:"type:timestamptz"`
	NextReconciliationDate time.Time         `gorm:"type:date;not null;index"`
}

// TableName returns the table name for GORM
func (ConsignmentStock) TableName() string {
	return "consignment_stocks"
}

// NewConsignmentStock records a new consignment agreement and its opening stock
func NewConsignmentStock(
	tenantID, productID, supplierID, warehouseID uuid.UUID,
	agreementNumber string,
	quantity, unitSalePrice decimal.Decimal,
	reconciliationDays int,
	firstReconciliation time.Time,
) (*ConsignmentStock, error) {
	if productID == uuid.Nil || supplierID == uuid.Nil || warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product, supplier and warehouse IDs are required")
	}
	if agreementNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Agreement number cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if unitSalePrice.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unit sale price cannot be negative")
	}
	if reconciliationDays <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Reconciliation period must be positive")
	}

	return &ConsignmentStock{
		TenantAggregateRoot:    shared.NewTenantAggregateRoot(tenantID),
		ProductID:              productID,
		SupplierID:             supplierID,
		WarehouseID:            warehouseID,
		AgreementNumber:        agreementNumber,
		Status:                 ConsignmentStatusActive,
		InitialQuantity:        quantity,
		CurrentQuantity:        quantity,
		SoldQuantity:           decimal.Zero,
		ReturnedQuantity:       decimal.Zero,
		DamagedQuantity:        decimal.Zero,
		UnitSalePrice:          unitSalePrice,
		TotalSalesAmount:       decimal.Zero,
		PaidAmount:             decimal.Zero,
		ReconciliationDays:     reconciliationDays,
		NextReconciliationDate: firstReconciliation,
	}, nil
}

// OutstandingAmount is what the tenant currently owes the supplier
func (c *ConsignmentStock) OutstandingAmount() decimal.Decimal {
	return c.TotalSalesAmount.Sub(c.PaidAmount)
}

// checkConservation verifies that every unit is accounted for
func (c *ConsignmentStock) checkConservation() error {
	accounted := c.CurrentQuantity.
		Add(c.SoldQuantity).
		Add(c.ReturnedQuantity).
		Add(c.DamagedQuantity)
	if !accounted.Equal(c.InitialQuantity) {
		return shared.NewDomainError("INTEGRITY_ERROR", "Consignment quantities do not sum to the initial quantity")
	}
	return nil
}

// touch marks the record modified and bumps the optimistic version
func (c *ConsignmentStock) touch() {
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

func (c *ConsignmentStock) requireActive() error {
	if c.Status != ConsignmentStatusActive {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Consignment agreement is closed")
	}
	return nil
}

// RecordSale moves quantity from on-hand to sold and accrues the payable
func (c *ConsignmentStock) RecordSale(quantity decimal.Decimal) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if quantity.GreaterThan(c.CurrentQuantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Sale exceeds consignment quantity on hand")
	}

	c.CurrentQuantity = c.CurrentQuantity.Sub(quantity)
	c.SoldQuantity = c.SoldQuantity.Add(quantity)
	c.TotalSalesAmount = c.TotalSalesAmount.Add(quantity.Mul(c.UnitSalePrice))
	if err := c.checkConservation(); err != nil {
		return err
	}
	c.touch()
	return nil
}

// RecordReturn moves quantity from on-hand back to the supplier
func (c *ConsignmentStock) RecordReturn(quantity decimal.Decimal) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if quantity.GreaterThan(c.CurrentQuantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Return exceeds consignment quantity on hand")
	}

	c.CurrentQuantity = c.CurrentQuantity.Sub(quantity)
	c.ReturnedQuantity = c.ReturnedQuantity.Add(quantity)
	if err := c.checkConservation(); err != nil {
		return err
	}
	c.touch()
	return nil
}

// RecordDamage moves quantity from on-hand to damaged. Who bears the cost of
// damaged consignment units is an agreement term, not a ledger concern; the
// ledger only accounts for the units.
func (c *ConsignmentStock) RecordDamage(quantity decimal.Decimal) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if quantity.GreaterThan(c.CurrentQuantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Damage exceeds consignment quantity on hand")
	}

	c.CurrentQuantity = c.CurrentQuantity.Sub(quantity)
	c.DamagedQuantity = c.DamagedQuantity.Add(quantity)
	if err := c.checkConservation(); err != nil {
		return err
	}
	c.touch()
	return nil
}

// RecordPayment settles part or all of the outstanding payable
func (c *ConsignmentStock) RecordPayment(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("VALIDATION_ERROR", "Payment amount must be positive")
	}
	if amount.GreaterThan(c.OutstandingAmount()) {
		return shared.NewDomainError("VALIDATION_ERROR", "Payment exceeds the outstanding amount")
	}

	c.PaidAmount = c.PaidAmount.Add(amount)
	c.touch()
	return nil
}

// Reconcile closes out a reconciliation period: it returns the payable amount
// accrued and not yet paid, and advances the next reconciliation date by the
// agreement's period. Reconciling does not itself record a payment.
func (c *ConsignmentStock) Reconcile(now time.Time) (decimal.Decimal, error) {
	if err := c.requireActive(); err != nil {
		return decimal.Zero, err
	}
	if now.Before(c.NextReconciliationDate) {
		return decimal.Zero, shared.NewDomainError("VALIDATION_ERROR", "Reconciliation date has not been reached")
	}

	payable := c.OutstandingAmount()
	c.LastReconciledAt = &now
	c.NextReconciliationDate = c.NextReconciliationDate.AddDate(0, 0, c.ReconciliationDays)
	c.touch()
	return payable, nil
}

// Close ends the agreement. Requires all stock off hand and the payable settled.
func (c *ConsignmentStock) Close() error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if !c.CurrentQuantity.IsZero() {
		return shared.NewDomainError("VALIDATION_ERROR", "Cannot close an agreement with stock on hand")
	}
	if !c.OutstandingAmount().IsZero() {
		return shared.NewDomainError("VALIDATION_ERROR", "Cannot close an agreement with an outstanding balance")
	}

	c.Status = ConsignmentStatusClosed
	c.touch()
	return nil
}
