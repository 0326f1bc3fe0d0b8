package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostMovementRequest represents a request to post a stock movement
type PostMovementRequest struct {
	MovementType    stock.MovementType `json:"movement_type" binding:"required"`
	ProductID       uuid.UUID          `json:"product_id" binding:"required"`
	WarehouseID     uuid.UUID          `json:"warehouse_id" binding:"required"`
	LocationID      *uuid.UUID         `json:"location_id"`
	LotNumber       string             `json:"lot_number"`
	SerialNumber    string             `json:"serial_number"`
	Quantity        decimal.Decimal    `json:"quantity" binding:"required"`
	UnitOfMeasure   string             `json:"unit_of_measure"`
	UnitCost        decimal.Decimal    `json:"unit_cost"` // Inbound only; outbound uses the line's average
	ReferenceType   string             `json:"reference_type"`
	ReferenceNumber string             `json:"reference_number"`
	ReferenceID     *uuid.UUID         `json:"reference_id"`
	Reason          string             `json:"reason"`
	UserID          *uuid.UUID         `json:"user_id"`
	IdempotencyKey  string             `json:"idempotency_key"` // Optional; duplicate keys are rejected
	Correction      bool               `json:"correction"`      // Outbound only; permits cutting into reserved quantity
}

// MovementResponse represents a posted movement in API responses
type MovementResponse struct {
	ID             uuid.UUID          `json:"id"`
	MovementNumber string             `json:"movement_number"`
	MovementType   stock.MovementType `json:"movement_type"`
	StockLineID    uuid.UUID          `json:"stock_line_id"`
	ProductID      uuid.UUID          `json:"product_id"`
	WarehouseID    uuid.UUID          `json:"warehouse_id"`
	LocationID     *uuid.UUID         `json:"location_id,omitempty"`
	LotNumber      string             `json:"lot_number,omitempty"`
	SerialNumber   string             `json:"serial_number,omitempty"`
	Quantity       decimal.Decimal    `json:"quantity"`
	UnitOfMeasure  string             `json:"unit_of_measure,omitempty"`
	UnitCost       decimal.Decimal    `json:"unit_cost"`
	TotalCost      decimal.Decimal    `json:"total_cost"`
	BalanceBefore  decimal.Decimal    `json:"balance_before"`
	BalanceAfter   decimal.Decimal    `json:"balance_after"`
	ReversalOfID   *uuid.UUID         `json:"reversal_of_id,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// ToMovementResponse maps a movement to its response shape
func ToMovementResponse(m *stock.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		MovementNumber: m.MovementNumber,
		MovementType:   m.MovementType,
		StockLineID:    m.StockLineID,
		ProductID:      m.ProductID,
		WarehouseID:    m.WarehouseID,
		LocationID:     m.LocationID,
		LotNumber:      m.LotNumber,
		SerialNumber:   m.SerialNumber,
		Quantity:       m.Quantity,
		UnitOfMeasure:  m.UnitOfMeasure,
		UnitCost:       m.UnitCost,
		TotalCost:      m.TotalCost,
		BalanceBefore:  m.BalanceBefore,
		BalanceAfter:   m.BalanceAfter,
		ReversalOfID:   m.ReversalOfID,
		OccurredAt:     m.OccurredAt,
	}
}

// ToMovementResponses maps a slice of movements
func ToMovementResponses(movements []stock.StockMovement) []MovementResponse {
	responses := make([]MovementResponse, len(movements))
	for i := range movements {
		responses[i] = ToMovementResponse(&movements[i])
	}
	return responses
}

// StockLineResponse represents a stock line in API responses
type StockLineResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	LocationID        *uuid.UUID      `json:"location_id,omitempty"`
	LotNumber         string          `json:"lot_number,omitempty"`
	CurrentQuantity   decimal.Decimal `json:"current_quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalValue        decimal.Decimal `json:"total_value"`
	UnitOfMeasure     string          `json:"unit_of_measure,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToStockLineResponse maps a stock line to its response shape
func ToStockLineResponse(l *stock.StockLine) StockLineResponse {
	return StockLineResponse{
		ID:                l.ID,
		TenantID:          l.TenantID,
		ProductID:         l.ProductID,
		WarehouseID:       l.WarehouseID,
		LocationID:        l.LocationID,
		LotNumber:         l.LotNumber,
		CurrentQuantity:   l.CurrentQuantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		UnitCost:          l.UnitCost,
		TotalValue:        l.TotalValue(),
		UnitOfMeasure:     l.UnitOfMeasure,
		UpdatedAt:         l.UpdatedAt,
		Version:           l.Version,
	}
}

// ToStockLineResponses maps a slice of stock lines
func ToStockLineResponses(lines []stock.StockLine) []StockLineResponse {
	responses := make([]StockLineResponse, len(lines))
	for i := range lines {
		responses[i] = ToStockLineResponse(&lines[i])
	}
	return responses
}

// CreateReservationRequest represents a request to reserve stock
type CreateReservationRequest struct {
	ProductID       uuid.UUID             `json:"product_id" binding:"required"`
	WarehouseID     uuid.UUID             `json:"warehouse_id" binding:"required"`
	LocationID      *uuid.UUID            `json:"location_id"`
	LotNumber       string                `json:"lot_number"`
	Quantity        decimal.Decimal       `json:"quantity" binding:"required"`
	UnitOfMeasure   string                `json:"unit_of_measure"`
	ReservationType stock.ReservationType `json:"reservation_type" binding:"required"`
	ExpirationDate  *time.Time            `json:"expiration_date"`
	ReferenceType   string                `json:"reference_type"`
	ReferenceNumber string                `json:"reference_number"`
	ReferenceID     *uuid.UUID            `json:"reference_id"`
	Notes           string                `json:"notes"`
	UserID          *uuid.UUID            `json:"user_id"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID                uuid.UUID               `json:"id"`
	ReservationNumber string                  `json:"reservation_number"`
	StockLineID       uuid.UUID               `json:"stock_line_id"`
	ProductID         uuid.UUID               `json:"product_id"`
	WarehouseID       uuid.UUID               `json:"warehouse_id"`
	RequestedQuantity decimal.Decimal         `json:"requested_quantity"`
	FulfilledQuantity decimal.Decimal         `json:"fulfilled_quantity"`
	RemainingQuantity decimal.Decimal         `json:"remaining_quantity"`
	ReservationType   stock.ReservationType   `json:"reservation_type"`
	Status            stock.ReservationStatus `json:"status"`
	ExpirationDate    *time.Time              `json:"expiration_date,omitempty"`
	Notes             string                  `json:"notes,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	Version           int                     `json:"version"`
}

// ToReservationResponse maps a reservation to its response shape
func ToReservationResponse(r *stock.StockReservation) ReservationResponse {
	return ReservationResponse{
		ID:                r.ID,
		ReservationNumber: r.ReservationNumber,
		StockLineID:       r.StockLineID,
		ProductID:         r.ProductID,
		WarehouseID:       r.WarehouseID,
		RequestedQuantity: r.RequestedQuantity,
		FulfilledQuantity: r.FulfilledQuantity,
		RemainingQuantity: r.RemainingQuantity(),
		ReservationType:   r.ReservationType,
		Status:            r.Status,
		ExpirationDate:    r.ExpirationDate,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Version:           r.Version,
	}
}

// ToReservationResponses maps a slice of reservations
func ToReservationResponses(reservations []stock.StockReservation) []ReservationResponse {
	responses := make([]ReservationResponse, len(reservations))
	for i := range reservations {
		responses[i] = ToReservationResponse(&reservations[i])
	}
	return responses
}

// FulfillReservationRequest represents a full or partial fulfillment
type FulfillReservationRequest struct {
	ReservationID uuid.UUID        `json:"reservation_id" binding:"required"`
	Amount        *decimal.Decimal `json:"amount"` // nil fulfills the remainder in full
	UserID        *uuid.UUID       `json:"user_id"`
}

// CancelReservationRequest represents a cancellation
type CancelReservationRequest struct {
	ReservationID uuid.UUID `json:"reservation_id" binding:"required"`
	CancelledBy   uuid.UUID `json:"cancelled_by"`
	Reason        string    `json:"reason"`
}

// MovementListFilter represents filter options for movement history
type MovementListFilter struct {
	ProductID    *uuid.UUID          `form:"product_id"`
	WarehouseID  *uuid.UUID          `form:"warehouse_id"`
	MovementType *stock.MovementType `form:"movement_type"`
	LotNumber    string              `form:"lot_number"`
	StartDate    *time.Time          `form:"start_date"`
	EndDate      *time.Time          `form:"end_date"`
	Page         int                 `form:"page" binding:"min=1"`
	PageSize     int                 `form:"page_size" binding:"min=1,max=100"`
	OrderBy      string              `form:"order_by"`
	OrderDir     string              `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// RegisterLotRequest represents a lot registration on first receipt
type RegisterLotRequest struct {
	ProductID         uuid.UUID       `json:"product_id" binding:"required"`
	LotNumber         string          `json:"lot_number" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity" binding:"required"`
	UnitOfMeasure     string          `json:"unit_of_measure"`
	SupplierID        *uuid.UUID      `json:"supplier_id"`
	SupplierLotNumber string          `json:"supplier_lot_number"`
	ManufacturedDate  *time.Time      `json:"manufactured_date"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
}

// LotBatchResponse represents a lot in API responses
type LotBatchResponse struct {
	ID                uuid.UUID            `json:"id"`
	LotNumber         string               `json:"lot_number"`
	ProductID         uuid.UUID            `json:"product_id"`
	Status            stock.LotBatchStatus `json:"status"`
	ManufacturedDate  *time.Time           `json:"manufactured_date,omitempty"`
	ExpiryDate        *time.Time           `json:"expiry_date,omitempty"`
	InitialQuantity   decimal.Decimal      `json:"initial_quantity"`
	CurrentQuantity   decimal.Decimal      `json:"current_quantity"`
	ReservedQuantity  decimal.Decimal      `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal      `json:"available_quantity"`
	QuarantineReason  string               `json:"quarantine_reason,omitempty"`
	DaysUntilExpiry   *int                 `json:"days_until_expiry,omitempty"`
}

// ToLotBatchResponse maps a lot to its response shape
func ToLotBatchResponse(b *stock.LotBatch, now time.Time) LotBatchResponse {
	resp := LotBatchResponse{
		ID:                b.ID,
		LotNumber:         b.LotNumber,
		ProductID:         b.ProductID,
		Status:            b.Status,
		ManufacturedDate:  b.ManufacturedDate,
		ExpiryDate:        b.ExpiryDate,
		InitialQuantity:   b.InitialQuantity,
		CurrentQuantity:   b.CurrentQuantity,
		ReservedQuantity:  b.ReservedQuantity,
		AvailableQuantity: b.AvailableQuantity(),
		QuarantineReason:  b.QuarantineReason,
	}
	if days, ok := b.DaysUntilExpiry(now); ok {
		resp.DaysUntilExpiry = &days
	}
	return resp
}

// RegisterSerialRequest represents a serial registration on receipt
type RegisterSerialRequest struct {
	ProductID   uuid.UUID  `json:"product_id" binding:"required"`
	Serial      string     `json:"serial" binding:"required"`
	WarehouseID *uuid.UUID `json:"warehouse_id"`
	LotNumber   string     `json:"lot_number"`
}

// SellSerialRequest represents a serial sale
type SellSerialRequest struct {
	SerialID       uuid.UUID  `json:"serial_id" binding:"required"`
	CustomerID     uuid.UUID  `json:"customer_id" binding:"required"`
	SalesOrderID   *uuid.UUID `json:"sales_order_id"`
	WarrantyMonths int        `json:"warranty_months"`
}

// SerialNumberResponse represents a serial in API responses
type SerialNumberResponse struct {
	ID                    uuid.UUID          `json:"id"`
	Serial                string             `json:"serial"`
	ProductID             uuid.UUID          `json:"product_id"`
	Status                stock.SerialStatus `json:"status"`
	WarrantyStartDate     *time.Time         `json:"warranty_start_date,omitempty"`
	WarrantyEndDate       *time.Time         `json:"warranty_end_date,omitempty"`
	UnderWarranty         bool               `json:"under_warranty"`
	RemainingWarrantyDays *int               `json:"remaining_warranty_days,omitempty"`
	CustomerID            *uuid.UUID         `json:"customer_id,omitempty"`
}

// ToSerialNumberResponse maps a serial to its response shape
func ToSerialNumberResponse(s *stock.SerialNumber, now time.Time) SerialNumberResponse {
	resp := SerialNumberResponse{
		ID:                s.ID,
		Serial:            s.Serial,
		ProductID:         s.ProductID,
		Status:            s.Status,
		WarrantyStartDate: s.WarrantyStartDate,
		WarrantyEndDate:   s.WarrantyEndDate,
		UnderWarranty:     s.IsUnderWarranty(now),
		CustomerID:        s.CustomerID,
	}
	if days, ok := s.RemainingWarrantyDays(now); ok {
		resp.RemainingWarrantyDays = &days
	}
	return resp
}

// StockAlert describes a threshold breach surfaced by the level monitor
type StockAlert struct {
	AlertType       string          `json:"alert_type"` // BELOW_MINIMUM, REORDER_POINT, EXPIRING_LOT
	ProductID       uuid.UUID       `json:"product_id"`
	WarehouseID     *uuid.UUID      `json:"warehouse_id,omitempty"`
	LotNumber       string          `json:"lot_number,omitempty"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	Threshold       decimal.Decimal `json:"threshold"`
	Shortage        decimal.Decimal `json:"shortage"`
	SuggestedAction string          `json:"suggested_action,omitempty"`
	SupplierID      *uuid.UUID      `json:"supplier_id,omitempty"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
}

// OpenConsignmentRequest represents the opening of a consignment agreement
type OpenConsignmentRequest struct {
	ProductID           uuid.UUID       `json:"product_id" binding:"required"`
	SupplierID          uuid.UUID       `json:"supplier_id" binding:"required"`
	WarehouseID         uuid.UUID       `json:"warehouse_id" binding:"required"`
	AgreementNumber     string          `json:"agreement_number" binding:"required"`
	Quantity            decimal.Decimal `json:"quantity" binding:"required"`
	UnitOfMeasure       string          `json:"unit_of_measure"`
	UnitSalePrice       decimal.Decimal `json:"unit_sale_price" binding:"required"`
	ReconciliationDays  int             `json:"reconciliation_days"`
	FirstReconciliation time.Time       `json:"first_reconciliation" binding:"required"`
}

// ConsignmentResponse represents a consignment record in API responses
type ConsignmentResponse struct {
	ID                     uuid.UUID               `json:"id"`
	AgreementNumber        string                  `json:"agreement_number"`
	ProductID              uuid.UUID               `json:"product_id"`
	SupplierID             uuid.UUID               `json:"supplier_id"`
	WarehouseID            uuid.UUID               `json:"warehouse_id"`
	Status                 stock.ConsignmentStatus `json:"status"`
	InitialQuantity        decimal.Decimal         `json:"initial_quantity"`
	CurrentQuantity        decimal.Decimal         `json:"current_quantity"`
	SoldQuantity           decimal.Decimal         `json:"sold_quantity"`
	ReturnedQuantity       decimal.Decimal         `json:"returned_quantity"`
	DamagedQuantity        decimal.Decimal         `json:"damaged_quantity"`
	TotalSalesAmount       decimal.Decimal         `json:"total_sales_amount"`
	PaidAmount             decimal.Decimal         `json:"paid_amount"`
	OutstandingAmount      decimal.Decimal         `json:"outstanding_amount"`
	NextReconciliationDate time.Time               `json:"next_reconciliation_date"`
}

// ToConsignmentResponse maps a consignment record to its response shape
func ToConsignmentResponse(c *stock.ConsignmentStock) ConsignmentResponse {
	return ConsignmentResponse{
		ID:                     c.ID,
		AgreementNumber:        c.AgreementNumber,
		ProductID:              c.ProductID,
		SupplierID:             c.SupplierID,
		WarehouseID:            c.WarehouseID,
		Status:                 c.Status,
		InitialQuantity:        c.InitialQuantity,
		CurrentQuantity:        c.CurrentQuantity,
		SoldQuantity:           c.SoldQuantity,
		ReturnedQuantity:       c.ReturnedQuantity,
		DamagedQuantity:        c.DamagedQuantity,
		TotalSalesAmount:       c.TotalSalesAmount,
		PaidAmount:             c.PaidAmount,
		OutstandingAmount:      c.OutstandingAmount(),
		NextReconciliationDate: c.NextReconciliationDate,
	}
}
