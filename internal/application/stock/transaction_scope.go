package stock

import (
	"context"

	"github.com/erp/stockledger/internal/domain/stock"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically. The read-check-write sequence of every mutating operation
// runs inside one Execute call; optimistic version conflicts surface as
// CONCURRENCY_CONFLICT and roll the whole transaction back.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	// LineRepo returns the stock line repository scoped to the current transaction
	LineRepo() stock.StockLineRepository
	// MovementRepo returns the movement repository scoped to the current transaction
	MovementRepo() stock.StockMovementRepository
	// ReservationRepo returns the reservation repository scoped to the current transaction
	ReservationRepo() stock.StockReservationRepository
	// LotRepo returns the lot batch repository scoped to the current transaction
	LotRepo() stock.LotBatchRepository
	// SerialRepo returns the serial number repository scoped to the current transaction
	SerialRepo() stock.SerialNumberRepository
	// ConsignmentRepo returns the consignment repository scoped to the current transaction
	ConsignmentRepo() stock.ConsignmentStockRepository
	// SequenceRepo returns the number sequence repository scoped to the current transaction
	SequenceRepo() stock.NumberSequenceRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	lineRepo        stock.StockLineRepository
	movementRepo    stock.StockMovementRepository
	reservationRepo stock.StockReservationRepository
	lotRepo         stock.LotBatchRepository
	serialRepo      stock.SerialNumberRepository
	consignmentRepo stock.ConsignmentStockRepository
	sequenceRepo    stock.NumberSequenceRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	lineRepo stock.StockLineRepository,
	movementRepo stock.StockMovementRepository,
	reservationRepo stock.StockReservationRepository,
	lotRepo stock.LotBatchRepository,
	serialRepo stock.SerialNumberRepository,
	consignmentRepo stock.ConsignmentStockRepository,
	sequenceRepo stock.NumberSequenceRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lineRepo:        lineRepo,
		movementRepo:    movementRepo,
		reservationRepo: reservationRepo,
		lotRepo:         lotRepo,
		serialRepo:      serialRepo,
		consignmentRepo: consignmentRepo,
		sequenceRepo:    sequenceRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LineRepo returns the stock line repository.
func (s *NoOpTransactionScope) LineRepo() stock.StockLineRepository {
	return s.lineRepo
}

// MovementRepo returns the movement repository.
func (s *NoOpTransactionScope) MovementRepo() stock.StockMovementRepository {
	return s.movementRepo
}

// ReservationRepo returns the reservation repository.
func (s *NoOpTransactionScope) ReservationRepo() stock.StockReservationRepository {
	return s.reservationRepo
}

// LotRepo returns the lot batch repository.
func (s *NoOpTransactionScope) LotRepo() stock.LotBatchRepository {
	return s.lotRepo
}

// SerialRepo returns the serial number repository.
func (s *NoOpTransactionScope) SerialRepo() stock.SerialNumberRepository {
	return s.serialRepo
}

// ConsignmentRepo returns the consignment repository.
func (s *NoOpTransactionScope) ConsignmentRepo() stock.ConsignmentStockRepository {
	return s.consignmentRepo
}

// SequenceRepo returns the number sequence repository.
func (s *NoOpTransactionScope) SequenceRepo() stock.NumberSequenceRepository {
	return s.sequenceRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
