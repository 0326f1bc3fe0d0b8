package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType represents the type of stock movement
type MovementType string

const (
	// MovementTypeIncoming represents stock entering a warehouse (receiving, returns)
	MovementTypeIncoming MovementType = "INCOMING"
	// MovementTypeOutgoing represents stock leaving a warehouse (shipment, consumption)
	MovementTypeOutgoing MovementType = "OUTGOING"
	// MovementTypeTransferIn represents stock arriving from another warehouse
	MovementTypeTransferIn MovementType = "TRANSFER_IN"
	// MovementTypeTransferOut represents stock departing to another warehouse
	MovementTypeTransferOut MovementType = "TRANSFER_OUT"
	// MovementTypeReversal represents the mathematical inverse of an earlier movement
	MovementTypeReversal MovementType = "REVERSAL"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is one of the closed set
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeIncoming,
		MovementTypeOutgoing,
		MovementTypeTransferIn,
		MovementTypeTransferOut,
		MovementTypeReversal:
		return true
	}
	return false
}

// NumberPrefix returns the human-readable movement number prefix for the type
func (t MovementType) NumberPrefix() string {
	switch t {
	case MovementTypeIncoming:
		return "IN"
	case MovementTypeOutgoing:
		return "OUT"
	case MovementTypeTransferIn:
		return "TRI"
	case MovementTypeTransferOut:
		return "TRO"
	case MovementTypeReversal:
		return "REV"
	}
	return "MOV"
}

// ReferenceDocument identifies the external document a movement or
// reservation was posted for (sales order, purchase order, transfer, ...).
// The ledger stores the triple opaquely and never dereferences it.
type ReferenceDocument struct {
	Type   string     `gorm:"column:reference_document_type;type:varchar(50)"`
	Number string     `gorm:"column:reference_document_number;type:varchar(50)"`
	ID     *uuid.UUID `gorm:"column:reference_document_id;type:uuid"`
}

// IsZero returns true when no reference document was supplied
func (r ReferenceDocument) IsZero() bool {
	return r.Type == "" && r.Number == "" && r.ID == nil
}

// StockMovement is an immutable record of a single quantity change. Once
// created a movement is never edited or deleted; corrections are expressed
// as new Reversal movements referencing the original.
type StockMovement struct {
	shared.BaseEntity
	TenantID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_movement_tenant_time,priority:1;uniqueIndex:idx_movement_number,priority:1"`
	MovementNumber string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_movement_number,priority:2"`
	MovementType   MovementType      `gorm:"type:varchar(20);not null;index"`
	StockLineID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID         `gorm:"type:uuid;not null;index"`
	WarehouseID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	LocationID     *uuid.UUID        `gorm:"type:uuid"`
	LotNumber      string            `gorm:"type:varchar(50);index"`
	SerialNumber   string            `gorm:"type:varchar(50);index"`
	Quantity       decimal.Decimal   `gorm:"type:decimal(18,4);not null"` // Always positive; direction implied by type
	UnitOfMeasure  string            `gorm:"type:varchar(20)"`
	UnitCost       decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	TotalCost      decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	BalanceBefore  decimal.Decimal   `gorm:"type:decimal(18,4);not null"` // Line current quantity before posting
	BalanceAfter   decimal.Decimal   `gorm:"type:decimal(18,4);not null"` // Line current quantity after posting
	Reference      ReferenceDocument `gorm:"embedded"`
	Reason         string            `gorm:"type:varchar(255)"`
	UserID         *uuid.UUID        `gorm:"type:uuid"`
	ReversalOfID   *uuid.UUID        `gorm:"type:uuid;index"` // Set on Reversal movements only
	OccurredAt     time.Time         `gorm:"type:timestamptz;not null;index:idx_movement_tenant_time,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement creates a new movement record
func NewStockMovement(
	tenantID uuid.UUID,
	movementNumber string,
	movementType MovementType,
	stockLineID, productID, warehouseID uuid.UUID,
	quantity, unitCost decimal.Decimal,
	balanceBefore, balanceAfter decimal.Decimal,
	occurredAt time.Time,
) (*StockMovement, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}
	if movementNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Movement number cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid movement type")
	}
	if stockLineID == uuid.Nil || productID == uuid.Nil || warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Stock line, product and warehouse IDs are required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unit cost cannot be negative")
	}

	return &StockMovement{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		MovementNumber: movementNumber,
		MovementType:   movementType,
		StockLineID:    stockLineID,
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Quantity:       quantity,
		UnitCost:       unitCost,
		TotalCost:      quantity.Mul(unitCost),
		BalanceBefore:  balanceBefore,
		BalanceAfter:   balanceAfter,
		OccurredAt:     occurredAt,
	}, nil
}

// WithLocation sets the optional location scope
func (m *StockMovement) WithLocation(locationID uuid.UUID) *StockMovement {
	m.LocationID = &locationID
	return m
}

// WithLot scopes the movement to a lot
func (m *StockMovement) WithLot(lotNumber string) *StockMovement {
	m.LotNumber = lotNumber
	return m
}

// WithSerial scopes the movement to a serialized unit
func (m *StockMovement) WithSerial(serialNumber string) *StockMovement {
	m.SerialNumber = serialNumber
	return m
}

// WithReference sets the external reference document
func (m *StockMovement) WithReference(ref ReferenceDocument) *StockMovement {
	m.Reference = ref
	return m
}

// WithReason sets the free-text reason
func (m *StockMovement) WithReason(reason string) *StockMovement {
	m.Reason = reason
	return m
}

// WithUser records the acting user for audit
func (m *StockMovement) WithUser(userID uuid.UUID) *StockMovement {
	m.UserID = &userID
	return m
}

// WithUnit records the unit of measure the quantity is expressed in
func (m *StockMovement) WithUnit(unit string) *StockMovement {
	m.UnitOfMeasure = unit
	return m
}

// IsInbound returns true if the movement increases current quantity
func (m *StockMovement) IsInbound() bool {
	switch m.MovementType {
	case MovementTypeIncoming, MovementTypeTransferIn:
		return true
	case MovementTypeReversal:
		return m.reversedDirectionInbound()
	}
	return false
}

// IsOutbound returns true if the movement decreases current quantity
func (m *StockMovement) IsOutbound() bool {
	return !m.IsInbound()
}

// reversedDirectionInbound reports the effective direction of a reversal.
// The reversal of an outbound movement adds stock back, so its effective
// direction is inbound. The stored ReversedType field is not needed: the
// direction is recorded in the sign of BalanceAfter - BalanceBefore.
func (m *StockMovement) reversedDirectionInbound() bool {
	return m.BalanceAfter.GreaterThan(m.BalanceBefore)
}

// SignedQuantity returns the quantity with direction applied
func (m *StockMovement) SignedQuantity() decimal.Decimal {
	if m.IsOutbound() {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// InverseType returns the movement type that mathematically undoes this one
func (m *StockMovement) InverseType() (MovementType, error) {
	switch m.MovementType {
	case MovementTypeIncoming, MovementTypeTransferIn,
		MovementTypeOutgoing, MovementTypeTransferOut:
		return MovementTypeReversal, nil
	}
	return "", shared.NewDomainError("VALIDATION_ERROR", "A reversal movement cannot itself be reversed")
}
