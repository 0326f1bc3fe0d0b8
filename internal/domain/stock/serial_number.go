package stock

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// SerialStatus represents the state of one uniquely identified unit
type SerialStatus string

const (
	SerialStatusInStock  SerialStatus = "IN_STOCK"
	SerialStatusReserved SerialStatus = "RESERVED"
	SerialStatusSold     SerialStatus = "SOLD"
	SerialStatusReturned SerialStatus = "RETURNED"
	SerialStatusDamaged  SerialStatus = "DAMAGED"
	SerialStatusScrapped SerialStatus = "SCRAPPED"
)

// String returns the string representation of SerialStatus
func (s SerialStatus) String() string {
	return string(s)
}

// serialTransitions is the single transition table for serialized units.
// A serial always represents exactly one unit; there is no fractional
// quantity anywhere in this state machine.
var serialTransitions = map[SerialStatus][]SerialStatus{
	SerialStatusInStock:  {SerialStatusReserved, SerialStatusDamaged, SerialStatusScrapped},
	SerialStatusReserved: {SerialStatusSold, SerialStatusInStock, SerialStatusDamaged, SerialStatusScrapped},
	SerialStatusSold:     {SerialStatusReturned},
	SerialStatusReturned: {SerialStatusInStock, SerialStatusDamaged},
	SerialStatusDamaged:  {SerialStatusScrapped},
	SerialStatusScrapped: {},
}

// CanTransitionSerial reports whether from → to is a legal status change
func CanTransitionSerial(from, to SerialStatus) bool {
	for _, allowed := range serialTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SerialNumber tracks one uniquely identified unit of a product through its
// lifecycle, including the warranty window opened when it is sold.
type SerialNumber struct {
	shared.TenantAggregateRoot
	Serial            string       `gorm:"type:varchar(50);not null;uniqueIndex:idx_serial_product,priority:3"`
	ProductID         uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_serial_product,priority:2"`
	WarehouseID       *uuid.UUID   `gorm:"type:uuid"`
	LotNumber         string       `gorm:"type:varchar(50)"`
	Status            SerialStatus `gorm:"type:varchar(20);not null;index"`
	WarrantyStartDate *time.Time   `gorm:"type:date"`
	WarrantyEndDate   *time.Time   `gorm:"type:date"`
	CustomerID        *uuid.UUID   `gorm:"type:uuid"`
	SalesOrderID      *uuid.UUID   `gorm:"type:uuid"`
	StatusReason      string       `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (SerialNumber) TableName() string {
	return "serial_numbers"
}

// NewSerialNumber registers a unit as it enters stock
func NewSerialNumber(tenantID, productID uuid.UUID, serial string) (*SerialNumber, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product ID cannot be empty")
	}
	if serial == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Serial cannot be empty")
	}

	return &SerialNumber{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Serial:              serial,
		ProductID:           productID,
		Status:              SerialStatusInStock,
	}, nil
}

// transition validates and applies a status change through the central table
func (s *SerialNumber) transition(to SerialStatus) error {
	if !CanTransitionSerial(s.Status, to) {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			"Serial cannot move from "+s.Status.String()+" to "+to.String())
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// Reserve holds the unit for a pending order
func (s *SerialNumber) Reserve(salesOrderID *uuid.UUID) error {
	if err := s.transition(SerialStatusReserved); err != nil {
		return err
	}
	s.SalesOrderID = salesOrderID
	return nil
}

// ReleaseReservation returns a reserved unit to stock
func (s *SerialNumber) ReleaseReservation() error {
	if s.Status != SerialStatusReserved {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Serial is not reserved")
	}
	if err := s.transition(SerialStatusInStock); err != nil {
		return err
	}
	s.SalesOrderID = nil
	return nil
}

// MarkSold records the sale and opens the warranty window. Warranty dates
// are set exactly once here and are immutable afterwards.
func (s *SerialNumber) MarkSold(customerID uuid.UUID, salesOrderID *uuid.UUID, soldAt time.Time, warrantyMonths int) error {
	if customerID == uuid.Nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Customer ID cannot be empty")
	}
	if warrantyMonths < 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Warranty months cannot be negative")
	}
	if err := s.transition(SerialStatusSold); err != nil {
		return err
	}

	s.CustomerID = &customerID
	s.SalesOrderID = salesOrderID
	if warrantyMonths > 0 && s.WarrantyStartDate == nil {
		end := soldAt.AddDate(0, warrantyMonths, 0)
		s.WarrantyStartDate = &soldAt
		s.WarrantyEndDate = &end
	}
	return nil
}

// MarkReturned records a customer return. The warranty window is left
// untouched; a returned unit keeps its history.
func (s *SerialNumber) MarkReturned(reason string) error {
	if err := s.transition(SerialStatusReturned); err != nil {
		return err
	}
	s.StatusReason = reason
	return nil
}

// RestockReturned puts a returned unit back into sellable stock
func (s *SerialNumber) RestockReturned() error {
	if s.Status != SerialStatusReturned {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "Serial is not in returned state")
	}
	if err := s.transition(SerialStatusInStock); err != nil {
		return err
	}
	s.CustomerID = nil
	s.SalesOrderID = nil
	s.StatusReason = ""
	return nil
}

// MarkDamaged flags the unit as damaged
func (s *SerialNumber) MarkDamaged(reason string) error {
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Damage reason is required")
	}
	if err := s.transition(SerialStatusDamaged); err != nil {
		return err
	}
	s.StatusReason = reason
	return nil
}

// MarkScrapped disposes of the unit. Scrapped is terminal.
func (s *SerialNumber) MarkScrapped(reason string) error {
	if err := s.transition(SerialStatusScrapped); err != nil {
		return err
	}
	s.StatusReason = reason
	return nil
}

// IsUnderWarranty returns true while the warranty window covers now
func (s *SerialNumber) IsUnderWarranty(now time.Time) bool {
	if s.WarrantyStartDate == nil || s.WarrantyEndDate == nil {
		return false
	}
	return !now.Before(*s.WarrantyStartDate) && !now.After(*s.WarrantyEndDate)
}

// RemainingWarrantyDays returns whole days of warranty left, zero once the
// window has closed, and 0 with ok=false when no warranty was recorded
func (s *SerialNumber) RemainingWarrantyDays(now time.Time) (int, bool) {
	if s.WarrantyEndDate == nil {
		return 0, false
	}
	days := int(s.WarrantyEndDate.Sub(now).Hours() / 24)
	if days < 0 {
		return 0, true
	}
	return days, true
}

// OverrideWarranty replaces the warranty window. This is an administrative
// correction, not a normal transition; the acting user is recorded by the
// calling service's audit log.
func (s *SerialNumber) OverrideWarranty(start, end time.Time) error {
	if end.Before(start) {
		return shared.NewDomainError("VALIDATION_ERROR", "Warranty end cannot precede warranty start")
	}
	s.WarrantyStartDate = &start
	s.WarrantyEndDate = &end
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}
