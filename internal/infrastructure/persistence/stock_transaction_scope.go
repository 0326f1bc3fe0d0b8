package persistence

import (
	"context"

	appstock "github.com/erp/stockledger/internal/application/stock"
	"github.com/erp/stockledger/internal/domain/stock"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// LineRepo returns the stock line repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LineRepo() stock.StockLineRepository {
	return NewGormStockLineRepository(r.tx)
}

// MovementRepo returns the movement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) MovementRepo() stock.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

// ReservationRepo returns the reservation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ReservationRepo() stock.StockReservationRepository {
	return NewGormStockReservationRepository(r.tx)
}

// LotRepo returns the lot batch repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LotRepo() stock.LotBatchRepository {
	return NewGormLotBatchRepository(r.tx)
}

// SerialRepo returns the serial number repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SerialRepo() stock.SerialNumberRepository {
	return NewGormSerialNumberRepository(r.tx)
}

// ConsignmentRepo returns the consignment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ConsignmentRepo() stock.ConsignmentStockRepository {
	return NewGormConsignmentRepository(r.tx)
}

// SequenceRepo returns the number sequence repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SequenceRepo() stock.NumberSequenceRepository {
	return NewGormNumberSequenceRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appstock.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
