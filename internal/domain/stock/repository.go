package stock

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLineRepository defines the interface for stock line persistence
type StockLineRepository interface {
	// FindByID finds a stock line by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockLine, error)

	// FindByIDForTenant finds a stock line by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*StockLine, error)

	// FindByCoordinate finds the line for a product/warehouse/location/lot coordinate
	FindByCoordinate(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*StockLine, error)

	// FindByProduct finds all lines for a product across warehouses
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]StockLine, error)

	// FindByWarehouse finds all lines in a warehouse
	FindByWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID, filter shared.Filter) ([]StockLine, error)

	// FindAllForTenant finds all lines for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockLine, error)

	// FindWithStock finds lines with positive current quantity
	FindWithStock(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockLine, error)

	// Save creates or updates a stock line
	Save(ctx context.Context, line *StockLine) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, line *StockLine) error

	// GetOrCreate returns the line for a coordinate, creating an empty one if missing
	GetOrCreate(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*StockLine, error)

	// SumQuantityByProduct sums current quantity for a product across all warehouses
	SumQuantityByProduct(ctx context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error)

	// SumAvailableByProduct sums available quantity for a product across all warehouses
	SumAvailableByProduct(ctx context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error)

	// SumValueByWarehouse sums current quantity times unit cost over a warehouse
	SumValueByWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (decimal.Decimal, error)

	// CountForTenant counts lines matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
}

// StockMovementRepository defines the interface for movement persistence.
// Movements are append-only: there is no update or delete.
type StockMovementRepository interface {
	// FindByID finds a movement by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)

	// FindByIDForTenant finds a movement by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*StockMovement, error)

	// FindByMovementNumber finds a movement by its number
	FindByMovementNumber(ctx context.Context, tenantID uuid.UUID, movementNumber string) (*StockMovement, error)

	// FindByStockLine finds movements for a stock line, newest first
	FindByStockLine(ctx context.Context, stockLineID uuid.UUID, filter shared.Filter) ([]StockMovement, error)

	// FindByProduct finds movements for a product
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]StockMovement, error)

	// FindByWarehouse finds movements for a warehouse
	FindByWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID, filter shared.Filter) ([]StockMovement, error)

	// FindByReference finds movements posted for an external document
	FindByReference(ctx context.Context, tenantID uuid.UUID, refType, refNumber string) ([]StockMovement, error)

	// FindByDateRange finds movements within a date range
	FindByDateRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time, filter shared.Filter) ([]StockMovement, error)

	// FindForTenant finds all movements for a tenant
	FindForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockMovement, error)

	// FindReversalOf finds the reversal posted against a movement, if any
	FindReversalOf(ctx context.Context, tenantID, movementID uuid.UUID) (*StockMovement, error)

	// Create appends a new movement
	Create(ctx context.Context, movement *StockMovement) error

	// CountForTenant counts movements matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// SumQuantityByTypeAndDateRange sums movement quantities for analysis
	SumQuantityByTypeAndDateRange(ctx context.Context, tenantID uuid.UUID, movementType MovementType, start, end time.Time) (decimal.Decimal, error)
}

// StockReservationRepository defines the interface for reservation persistence
type StockReservationRepository interface {
	// FindByID finds a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockReservation, error)

	// FindByIDForTenant finds a reservation by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*StockReservation, error)

	// FindByReservationNumber finds a reservation by its number
	FindByReservationNumber(ctx context.Context, tenantID uuid.UUID, reservationNumber string) (*StockReservation, error)

	// FindByStockLine finds reservations against a stock line
	FindByStockLine(ctx context.Context, stockLineID uuid.UUID, filter shared.Filter) ([]StockReservation, error)

	// FindOpenByStockLine finds non-terminal reservations against a stock line
	FindOpenByStockLine(ctx context.Context, stockLineID uuid.UUID) ([]StockReservation, error)

	// FindByReference finds reservations held for an external document
	FindByReference(ctx context.Context, tenantID uuid.UUID, refType, refNumber string) ([]StockReservation, error)

	// FindByStatus finds reservations in a given status
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status ReservationStatus, filter shared.Filter) ([]StockReservation, error)

	// FindExpired finds non-terminal reservations whose expiration date passed
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]StockReservation, error)

	// Save creates or updates a reservation
	Save(ctx context.Context, reservation *StockReservation) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, reservation *StockReservation) error

	// CountForTenant counts reservations matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
}

// LotBatchRepository defines the interface for lot batch persistence
type LotBatchRepository interface {
	// FindByID finds a lot by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*LotBatch, error)

	// FindByIDForTenant finds a lot by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*LotBatch, error)

	// FindByLotNumber finds a lot by product and lot number
	FindByLotNumber(ctx context.Context, tenantID, productID uuid.UUID, lotNumber string) (*LotBatch, error)

	// FindByProduct finds all lots for a product
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]LotBatch, error)

	// FindReservable finds Active lots with available quantity for a product,
	// ordered by expiry date ascending (earliest expiry first)
	FindReservable(ctx context.Context, tenantID, productID uuid.UUID) ([]LotBatch, error)

	// FindExpiringSoon finds non-depleted lots expiring within a number of days
	FindExpiringSoon(ctx context.Context, tenantID uuid.UUID, asOf time.Time, withinDays int, filter shared.Filter) ([]LotBatch, error)

	// FindExpired finds lots past their expiry date that still hold stock
	FindExpired(ctx context.Context, tenantID uuid.UUID, asOf time.Time, filter shared.Filter) ([]LotBatch, error)

	// FindByStatus finds lots in a given status
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status LotBatchStatus, filter shared.Filter) ([]LotBatch, error)

	// Save creates or updates a lot
	Save(ctx context.Context, batch *LotBatch) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, batch *LotBatch) error

	// CountForTenant counts lots matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
}

// SerialNumberRepository defines the interface for serial number persistence
type SerialNumberRepository interface {
	// FindByID finds a serial by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SerialNumber, error)

	// FindByIDForTenant finds a serial by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*SerialNumber, error)

	// FindBySerial finds a serial by product and serial string
	FindBySerial(ctx context.Context, tenantID, productID uuid.UUID, serial string) (*SerialNumber, error)

	// FindByProduct finds all serials for a product
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]SerialNumber, error)

	// FindByStatus finds serials in a given status
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status SerialStatus, filter shared.Filter) ([]SerialNumber, error)

	// FindByCustomer finds serials sold to a customer
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, filter shared.Filter) ([]SerialNumber, error)

	// FindInStockByProduct finds sellable serials for a product in a warehouse
	FindInStockByProduct(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, limit int) ([]SerialNumber, error)

	// ExistsBySerial checks whether a serial is already registered for a product
	ExistsBySerial(ctx context.Context, tenantID, productID uuid.UUID, serial string) (bool, error)

	// Save creates or updates a serial
	Save(ctx context.Context, serial *SerialNumber) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, serial *SerialNumber) error

	// CountByStatus counts serials by status for a product
	CountByStatus(ctx context.Context, tenantID, productID uuid.UUID, status SerialStatus) (int64, error)
}

// ConsignmentStockRepository defines the interface for consignment persistence
type ConsignmentStockRepository interface {
	// FindByID finds a consignment record by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*ConsignmentStock, error)

	// FindByIDForTenant finds a consignment record by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ConsignmentStock, error)

	// FindByAgreementNumber finds a consignment record by its agreement number
	FindByAgreementNumber(ctx context.Context, tenantID uuid.UUID, agreementNumber string) (*ConsignmentStock, error)

	// FindBySupplier finds consignment records for a supplier
	FindBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID, filter shared.Filter) ([]ConsignmentStock, error)

	// FindDueForReconciliation finds active records whose next reconciliation date passed
	FindDueForReconciliation(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]ConsignmentStock, error)

	// FindActiveForTenant finds all active consignment records for a tenant
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ConsignmentStock, error)

	// Save creates or updates a consignment record
	Save(ctx context.Context, consignment *ConsignmentStock) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, consignment *ConsignmentStock) error

	// SumOutstandingBySupplier sums the outstanding payable owed to a supplier
	SumOutstandingBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID) (decimal.Decimal, error)
}

// NumberSequenceRepository hands out document numbers per tenant and prefix.
// Numbers are unique and monotonically increasing within a tenant/prefix pair;
// gaps are tolerated (a rolled-back posting burns its number).
type NumberSequenceRepository interface {
	// Next returns the next formatted number for the prefix, e.g. IN-000042
	Next(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error)
}

// MovementFilter extends shared.Filter with movement-specific filters
type MovementFilter struct {
	shared.Filter
	WarehouseID  *uuid.UUID
	ProductID    *uuid.UUID
	MovementType *MovementType
	LotNumber    string
	StartDate    *time.Time
	EndDate      *time.Time
	UserID       *uuid.UUID
}

// ReservationFilter extends shared.Filter with reservation-specific filters
type ReservationFilter struct {
	shared.Filter
	WarehouseID     *uuid.UUID
	ProductID       *uuid.UUID
	Status          *ReservationStatus
	ReservationType *ReservationType
	ReferenceType   string
	ReferenceNumber string
}
