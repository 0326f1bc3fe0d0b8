package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeStockLine        = "StockLine"
	AggregateTypeStockReservation = "StockReservation"
	AggregateTypeLotBatch         = "LotBatch"
	AggregateTypeSerialNumber     = "SerialNumber"
)

// Event type constants
const (
	EventTypeMovementPosted          = "MovementPosted"
	EventTypeMovementReversed        = "MovementReversed"
	EventTypeReservationCreated      = "ReservationCreated"
	EventTypeReservationFulfilled    = "ReservationFulfilled"
	EventTypeReservationCancelled    = "ReservationCancelled"
	EventTypeReservationExpired      = "ReservationExpired"
	EventTypeLotQuarantined          = "LotQuarantined"
	EventTypeLotExpiring             = "LotExpiring"
	EventTypeStockBelowMinimum       = "StockBelowMinimum"
	EventTypeSerialStatusChanged     = "SerialStatusChanged"
)

// MovementPostedEvent is raised for every posted movement
type MovementPostedEvent struct {
	shared.BaseDomainEvent
	MovementID     uuid.UUID       `json:"movement_id"`
	MovementNumber string          `json:"movement_number"`
	MovementType   MovementType    `json:"movement_type"`
	StockLineID    uuid.UUID       `json:"stock_line_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
}

// NewMovementPostedEvent creates a new MovementPostedEvent
func NewMovementPostedEvent(line *StockLine, movement *StockMovement) *MovementPostedEvent {
	return &MovementPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementPosted, AggregateTypeStockLine, line.ID, line.TenantID),
		MovementID:      movement.ID,
		MovementNumber:  movement.MovementNumber,
		MovementType:    movement.MovementType,
		StockLineID:     line.ID,
		ProductID:       movement.ProductID,
		WarehouseID:     movement.WarehouseID,
		Quantity:        movement.Quantity,
		BalanceAfter:    movement.BalanceAfter,
	}
}

// EventType returns the event type name
func (e *MovementPostedEvent) EventType() string {
	return EventTypeMovementPosted
}

// MovementReversedEvent is raised when a movement is reversed
type MovementReversedEvent struct {
	shared.BaseDomainEvent
	OriginalMovementID uuid.UUID       `json:"original_movement_id"`
	ReversalMovementID uuid.UUID       `json:"reversal_movement_id"`
	StockLineID        uuid.UUID       `json:"stock_line_id"`
	ProductID          uuid.UUID       `json:"product_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	Reason             string          `json:"reason,omitempty"`
}

// NewMovementReversedEvent creates a new MovementReversedEvent
func NewMovementReversedEvent(line *StockLine, original, reversal *StockMovement) *MovementReversedEvent {
	return &MovementReversedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeMovementReversed, AggregateTypeStockLine, line.ID, line.TenantID),
		OriginalMovementID: original.ID,
		ReversalMovementID: reversal.ID,
		StockLineID:        line.ID,
		ProductID:          reversal.ProductID,
		Quantity:           reversal.Quantity,
		Reason:             reversal.Reason,
	}
}

// EventType returns the event type name
func (e *MovementReversedEvent) EventType() string {
	return EventTypeMovementReversed
}

// ReservationCreatedEvent is raised when quantity is earmarked
type ReservationCreatedEvent struct {
	shared.BaseDomainEvent
	ReservationID     uuid.UUID       `json:"reservation_id"`
	ReservationNumber string          `json:"reservation_number"`
	StockLineID       uuid.UUID       `json:"stock_line_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
}

// NewReservationCreatedEvent creates a new ReservationCreatedEvent
func NewReservationCreatedEvent(r *StockReservation) *ReservationCreatedEvent {
	return &ReservationCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeReservationCreated, AggregateTypeStockReservation, r.ID, r.TenantID),
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		StockLineID:       r.StockLineID,
		ProductID:         r.ProductID,
		WarehouseID:       r.WarehouseID,
		Quantity:          r.RequestedQuantity,
		ExpirationDate:    r.ExpirationDate,
	}
}

// EventType returns the event type name
func (e *ReservationCreatedEvent) EventType() string {
	return EventTypeReservationCreated
}

// ReservationFulfilledEvent is raised on full or partial fulfillment
type ReservationFulfilledEvent struct {
	shared.BaseDomainEvent
	ReservationID     uuid.UUID       `json:"reservation_id"`
	ReservationNumber string          `json:"reservation_number"`
	StockLineID       uuid.UUID       `json:"stock_line_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	FulfilledQuantity decimal.Decimal `json:"fulfilled_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Partial           bool            `json:"partial"`
}

// NewReservationFulfilledEvent creates a new ReservationFulfilledEvent
func NewReservationFulfilledEvent(r *StockReservation, amount decimal.Decimal, partial bool) *ReservationFulfilledEvent {
	return &ReservationFulfilledEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeReservationFulfilled, AggregateTypeStockReservation, r.ID, r.TenantID),
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		StockLineID:       r.StockLineID,
		ProductID:         r.ProductID,
		FulfilledQuantity: amount,
		RemainingQuantity: r.RemainingQuantity(),
		Partial:           partial,
	}
}

// EventType returns the event type name
func (e *ReservationFulfilledEvent) EventType() string {
	return EventTypeReservationFulfilled
}

// ReservationCancelledEvent is raised when a reservation is cancelled
type ReservationCancelledEvent struct {
	shared.BaseDomainEvent
	ReservationID     uuid.UUID       `json:"reservation_id"`
	ReservationNumber string          `json:"reservation_number"`
	StockLineID       uuid.UUID       `json:"stock_line_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ReleasedQuantity  decimal.Decimal `json:"released_quantity"`
	CancelledBy       *uuid.UUID      `json:"cancelled_by,omitempty"`
}

// NewReservationCancelledEvent creates a new ReservationCancelledEvent
func NewReservationCancelledEvent(r *StockReservation, released decimal.Decimal) *ReservationCancelledEvent {
	return &ReservationCancelledEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeReservationCancelled, AggregateTypeStockReservation, r.ID, r.TenantID),
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		StockLineID:       r.StockLineID,
		ProductID:         r.ProductID,
		ReleasedQuantity:  released,
		CancelledBy:       r.CancelledBy,
	}
}

// EventType returns the event type name
func (e *ReservationCancelledEvent) EventType() string {
	return EventTypeReservationCancelled
}

// ReservationExpiredEvent is raised when the sweep expires a reservation
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	ReservationID     uuid.UUID       `json:"reservation_id"`
	ReservationNumber string          `json:"reservation_number"`
	StockLineID       uuid.UUID       `json:"stock_line_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ReleasedQuantity  decimal.Decimal `json:"released_quantity"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
}

// NewReservationExpiredEvent creates a new ReservationExpiredEvent
func NewReservationExpiredEvent(r *StockReservation, released decimal.Decimal) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeReservationExpired, AggregateTypeStockReservation, r.ID, r.TenantID),
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		StockLineID:       r.StockLineID,
		ProductID:         r.ProductID,
		ReleasedQuantity:  released,
		ExpirationDate:    r.ExpirationDate,
	}
}

// EventType returns the event type name
func (e *ReservationExpiredEvent) EventType() string {
	return EventTypeReservationExpired
}

// LotQuarantinedEvent is raised when a lot is placed in quarantine
type LotQuarantinedEvent struct {
	shared.BaseDomainEvent
	LotBatchID uuid.UUID       `json:"lot_batch_id"`
	LotNumber  string          `json:"lot_number"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reason     string          `json:"reason"`
}

// NewLotQuarantinedEvent creates a new LotQuarantinedEvent
func NewLotQuarantinedEvent(b *LotBatch) *LotQuarantinedEvent {
	return &LotQuarantinedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotQuarantined, AggregateTypeLotBatch, b.ID, b.TenantID),
		LotBatchID:      b.ID,
		LotNumber:       b.LotNumber,
		ProductID:       b.ProductID,
		Quantity:        b.CurrentQuantity,
		Reason:          b.QuarantineReason,
	}
}

// EventType returns the event type name
func (e *LotQuarantinedEvent) EventType() string {
	return EventTypeLotQuarantined
}

// LotExpiringEvent is raised by the level monitor for lots inside the
// expiry warning window
type LotExpiringEvent struct {
	shared.BaseDomainEvent
	LotBatchID      uuid.UUID       `json:"lot_batch_id"`
	LotNumber       string          `json:"lot_number"`
	ProductID       uuid.UUID       `json:"product_id"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
}

// NewLotExpiringEvent creates a new LotExpiringEvent
func NewLotExpiringEvent(b *LotBatch, daysUntilExpiry int) *LotExpiringEvent {
	var expiry time.Time
	if b.ExpiryDate != nil {
		expiry = *b.ExpiryDate
	}
	return &LotExpiringEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotExpiring, AggregateTypeLotBatch, b.ID, b.TenantID),
		LotBatchID:      b.ID,
		LotNumber:       b.LotNumber,
		ProductID:       b.ProductID,
		CurrentQuantity: b.CurrentQuantity,
		ExpiryDate:      expiry,
		DaysUntilExpiry: daysUntilExpiry,
	}
}

// EventType returns the event type name
func (e *LotExpiringEvent) EventType() string {
	return EventTypeLotExpiring
}

// StockBelowMinimumEvent is raised when a product's total stock falls below
// its configured minimum level
type StockBelowMinimumEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID       `json:"product_id"`
	WarehouseID     *uuid.UUID      `json:"warehouse_id,omitempty"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	MinimumQuantity decimal.Decimal `json:"minimum_quantity"`
}

// NewStockBelowMinimumEvent creates a new StockBelowMinimumEvent
func NewStockBelowMinimumEvent(tenantID, productID uuid.UUID, warehouseID *uuid.UUID, current, minimum decimal.Decimal) *StockBelowMinimumEvent {
	return &StockBelowMinimumEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBelowMinimum, AggregateTypeStockLine, productID, tenantID),
		ProductID:       productID,
		WarehouseID:     warehouseID,
		CurrentQuantity: current,
		MinimumQuantity: minimum,
	}
}

// EventType returns the event type name
func (e *StockBelowMinimumEvent) EventType() string {
	return EventTypeStockBelowMinimum
}

// SerialStatusChangedEvent is raised on every serial status transition
type SerialStatusChangedEvent struct {
	shared.BaseDomainEvent
	SerialNumberID uuid.UUID    `json:"serial_number_id"`
	Serial         string       `json:"serial"`
	ProductID      uuid.UUID    `json:"product_id"`
	OldStatus      SerialStatus `json:"old_status"`
	NewStatus      SerialStatus `json:"new_status"`
}

// NewSerialStatusChangedEvent creates a new SerialStatusChangedEvent
func NewSerialStatusChangedEvent(s *SerialNumber, oldStatus SerialStatus) *SerialStatusChangedEvent {
	return &SerialStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSerialStatusChanged, AggregateTypeSerialNumber, s.ID, s.TenantID),
		SerialNumberID:  s.ID,
		Serial:          s.Serial,
		ProductID:       s.ProductID,
		OldStatus:       oldStatus,
		NewStatus:       s.Status,
	}
}

// EventType returns the event type name
func (e *SerialStatusChangedEvent) EventType() string {
	return EventTypeSerialStatusChanged
}
