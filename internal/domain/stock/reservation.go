package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationStatus represents the lifecycle state of a stock reservation
type ReservationStatus string

const (
	ReservationStatusPending            ReservationStatus = "PENDING"
	ReservationStatusPartiallyFulfilled ReservationStatus = "PARTIALLY_FULFILLED"
	ReservationStatusFulfilled          ReservationStatus = "FULFILLED"
	ReservationStatusCancelled          ReservationStatus = "CANCELLED"
	ReservationStatusExpired            ReservationStatus = "EXPIRED"
)

// String returns the string representation of ReservationStatus
func (s ReservationStatus) String() string {
	return string(s)
}

// IsTerminal returns true for final states that admit no further mutation
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	}
	return false
}

// reservationTransitions is the single transition table for the reservation
// state machine. Every status change is validated here, never ad hoc at
// call sites.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending: {
		ReservationStatusPartiallyFulfilled,
		ReservationStatusFulfilled,
		ReservationStatusCancelled,
		ReservationStatusExpired,
	},
	ReservationStatusPartiallyFulfilled: {
		ReservationStatusPartiallyFulfilled,
		ReservationStatusFulfilled,
		ReservationStatusCancelled,
		ReservationStatusExpired,
	},
}

// CanTransition reports whether from → to is a legal status change
func CanTransition(from, to ReservationStatus) bool {
	for _, allowed := range reservationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ReservationType classifies what a reservation holds stock for
type ReservationType string

const (
	ReservationTypeSalesOrder      ReservationType = "SALES_ORDER"
	ReservationTypeProductionOrder ReservationType = "PRODUCTION_ORDER"
	ReservationTypeTransfer        ReservationType = "TRANSFER"
	ReservationTypeManual          ReservationType = "MANUAL"
)

// IsValid returns true if the reservation type is one of the closed set
func (t ReservationType) IsValid() bool {
	switch t {
	case ReservationTypeSalesOrder, ReservationTypeProductionOrder,
		ReservationTypeTransfer, ReservationTypeManual:
		return true
	}
	return false
}

// ReservationNumberPrefix is the prefix for reservation numbers (RSV-000042)
const ReservationNumberPrefix = "RSV"

// StockReservation earmarks quantity on a stock line for future fulfillment
// without physically moving it. Creating one raises the line's reserved
// quantity; fulfilling, cancelling or expiring it lowers the reserved
// quantity again, in full or for the unfulfilled remainder.
type StockReservation struct {
	shared.TenantAggregateRoot
	ReservationNumber string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_reservation_number"`
	StockLineID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID         `gorm:"type:uuid;not null;index"`
	WarehouseID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	LocationID        *uuid.UUID        `gorm:"type:uuid"`
	RequestedQuantity decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	FulfilledQuantity decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	UnitOfMeasure     string            `gorm:"type:varchar(20)"`
	ReservationType   ReservationType   `gorm:"type:varchar(30);not null"`
	Status            ReservationStatus `gorm:"type:varchar(30);not null;index"`
	ExpirationDate    *time.Time        `gorm:"type:timestamptz;index"`
	Reference         ReferenceDocument `gorm:"embedded"`
	Notes             string            `gorm:"type:varchar(500)"`
	FulfilledAt       *time.Time        `gorm:"type:timestamptz"`
	CancelledAt       *time.Time        `gorm:"type:timestamptz"`
	CancelledBy       *uuid.UUID        `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (StockReservation) TableName() string {
	return "stock_reservations"
}

// NewStockReservation creates a Pending reservation
func NewStockReservation(
	tenantID uuid.UUID,
	reservationNumber string,
	stockLineID, productID, warehouseID uuid.UUID,
	quantity decimal.Decimal,
	reservationType ReservationType,
) (*StockReservation, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}
	if reservationNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Reservation number cannot be empty")
	}
	if stockLineID == uuid.Nil || productID == uuid.Nil || warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Stock line, product and warehouse IDs are required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Quantity must be positive")
	}
	if !reservationType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid reservation type")
	}

	return &StockReservation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ReservationNumber:   reservationNumber,
		StockLineID:         stockLineID,
		ProductID:           productID,
		WarehouseID:         warehouseID,
		RequestedQuantity:   quantity,
		FulfilledQuantity:   decimal.Zero,
		ReservationType:     reservationType,
		Status:              ReservationStatusPending,
	}, nil
}

// WithExpiration sets the expiration date for time-limited reservations
func (r *StockReservation) WithExpiration(expirationDate time.Time) *StockReservation {
	r.ExpirationDate = &expirationDate
	return r
}

// WithLocation sets the optional location scope
func (r *StockReservation) WithLocation(locationID uuid.UUID) *StockReservation {
	r.LocationID = &locationID
	return r
}

// WithReference sets the external reference document
func (r *StockReservation) WithReference(ref ReferenceDocument) *StockReservation {
	r.Reference = ref
	return r
}

// WithUnit records the unit of measure the quantity is expressed in
func (r *StockReservation) WithUnit(unit string) *StockReservation {
	r.UnitOfMeasure = unit
	return r
}

// RemainingQuantity returns the requested quantity not yet fulfilled
func (r *StockReservation) RemainingQuantity() decimal.Decimal {
	return r.RequestedQuantity.Sub(r.FulfilledQuantity)
}

// IsExpired returns true if the reservation carries an expiration date in
// the past and is still in a non-terminal state
func (r *StockReservation) IsExpired(now time.Time) bool {
	return r.ExpirationDate != nil && r.ExpirationDate.Before(now) && !r.Status.IsTerminal()
}

// transition validates and applies a status change through the central table
func (r *StockReservation) transition(to ReservationStatus) error {
	if !CanTransition(r.Status, to) {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			"Reservation cannot move from "+r.Status.String()+" to "+to.String())
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	return nil
}

// Fulfill completes the reservation in full. It returns the quantity that
// was still held (the unfulfilled remainder) so the caller can release it
// from the stock line's reserved quantity.
//
// Fulfillment does not itself move stock: the caller is expected to post a
// matching Outgoing movement for the fulfilled amount as a separate,
// coordinated call.
func (r *StockReservation) Fulfill(now time.Time) (decimal.Decimal, error) {
	remaining := r.RemainingQuantity()
	if err := r.transition(ReservationStatusFulfilled); err != nil {
		return decimal.Zero, err
	}
	r.FulfilledQuantity = r.RequestedQuantity
	r.FulfilledAt = &now
	return remaining, nil
}

// PartialFulfill records a partial fulfillment of the given amount and
// returns the amount to release from the line's reserved quantity (always
// equal to amount). If the amount completes the request the reservation
// becomes Fulfilled.
func (r *StockReservation) PartialFulfill(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, shared.NewDomainError("VALIDATION_ERROR", "Fulfillment amount must be positive")
	}
	if amount.GreaterThan(r.RemainingQuantity()) {
		return decimal.Zero, shared.NewDomainError("VALIDATION_ERROR", "Fulfillment amount exceeds remaining quantity")
	}

	next := ReservationStatusPartiallyFulfilled
	if amount.Equal(r.RemainingQuantity()) {
		next = ReservationStatusFulfilled
	}
	if err := r.transition(next); err != nil {
		return decimal.Zero, err
	}

	r.FulfilledQuantity = r.FulfilledQuantity.Add(amount)
	if next == ReservationStatusFulfilled {
		r.FulfilledAt = &now
	}
	return amount, nil
}

// Cancel moves the reservation to Cancelled and returns the unfulfilled
// remainder to release back to available quantity
func (r *StockReservation) Cancel(cancelledBy uuid.UUID, now time.Time) (decimal.Decimal, error) {
	remaining := r.RemainingQuantity()
	if err := r.transition(ReservationStatusCancelled); err != nil {
		return decimal.Zero, err
	}
	r.CancelledAt = &now
	if cancelledBy != uuid.Nil {
		r.CancelledBy = &cancelledBy
	}
	return remaining, nil
}

// Expire behaves like cancellation but records the terminal state as
// Expired. It is driven by the expiration sweep, never by callers.
func (r *StockReservation) Expire(now time.Time) (decimal.Decimal, error) {
	remaining := r.RemainingQuantity()
	if err := r.transition(ReservationStatusExpired); err != nil {
		return decimal.Zero, err
	}
	r.CancelledAt = &now
	return remaining, nil
}
