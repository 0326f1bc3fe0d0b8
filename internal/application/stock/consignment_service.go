package stock

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConsignmentService tracks supplier-owned stock and the payable that accrues
// as it sells. Consignment records are separate from the ledger's own stock
// lines: physical receipt and shipment of consignment goods still post
// movements, while this service accounts for ownership and settlement.
type ConsignmentService struct {
	txScope         TransactionScope
	consignmentRepo stock.ConsignmentStockRepository
	clock           shared.Clock
	logger          *zap.Logger
}

// NewConsignmentService creates a new ConsignmentService
func NewConsignmentService(
	txScope TransactionScope,
	consignmentRepo stock.ConsignmentStockRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *ConsignmentService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsignmentService{
		txScope:         txScope,
		consignmentRepo: consignmentRepo,
		clock:           clock,
		logger:          logger,
	}
}

// OpenConsignment records a new consignment agreement and its opening stock
func (s *ConsignmentService) OpenConsignment(ctx context.Context, tenantID uuid.UUID, req OpenConsignmentRequest) (*ConsignmentResponse, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Tenant ID cannot be empty")
	}

	existing, err := s.consignmentRepo.FindByAgreementNumber(ctx, tenantID, req.AgreementNumber)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			"Agreement "+req.AgreementNumber+" already exists")
	}

	reconciliationDays := req.ReconciliationDays
	if reconciliationDays == 0 {
		reconciliationDays = 30
	}

	consignment, err := stock.NewConsignmentStock(
		tenantID, req.ProductID, req.SupplierID, req.WarehouseID,
		req.AgreementNumber,
		req.Quantity, req.UnitSalePrice,
		reconciliationDays,
		req.FirstReconciliation,
	)
	if err != nil {
		return nil, err
	}
	consignment.UnitOfMeasure = req.UnitOfMeasure

	if err := s.consignmentRepo.Save(ctx, consignment); err != nil {
		return nil, err
	}

	s.logger.Info("Opened consignment agreement",
		zap.String("agreement_number", consignment.AgreementNumber),
		zap.String("supplier_id", consignment.SupplierID.String()),
		zap.String("quantity", consignment.InitialQuantity.String()),
	)

	response := ToConsignmentResponse(consignment)
	return &response, nil
}

// mutateConsignment loads the record, applies fn and saves with locking
func (s *ConsignmentService) mutateConsignment(ctx context.Context, tenantID, consignmentID uuid.UUID, fn func(*stock.ConsignmentStock) error) (*ConsignmentResponse, error) {
	var consignment *stock.ConsignmentStock
	err := withConcurrencyRetry(func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			consignment, err = repos.ConsignmentRepo().FindByIDForTenant(ctx, tenantID, consignmentID)
			if err != nil {
				return err
			}
			if err := fn(consignment); err != nil {
				return err
			}
			return repos.ConsignmentRepo().SaveWithLock(ctx, consignment)
		})
	})
	if err != nil {
		return nil, err
	}

	response := ToConsignmentResponse(consignment)
	return &response, nil
}

// RecordConsignmentSale records the sale of consignment units and accrues the
// supplier payable
func (s *ConsignmentService) RecordConsignmentSale(ctx context.Context, tenantID, consignmentID uuid.UUID, quantity decimal.Decimal) (*ConsignmentResponse, error) {
	return s.mutateConsignment(ctx, tenantID, consignmentID, func(c *stock.ConsignmentStock) error {
		return c.RecordSale(quantity)
	})
}

// RecordConsignmentReturn records unsold units returned to the supplier
func (s *ConsignmentService) RecordConsignmentReturn(ctx context.Context, tenantID, consignmentID uuid.UUID, quantity decimal.Decimal) (*ConsignmentResponse, error) {
	return s.mutateConsignment(ctx, tenantID, consignmentID, func(c *stock.ConsignmentStock) error {
		return c.RecordReturn(quantity)
	})
}

// RecordConsignmentDamage records consignment units damaged on hand
func (s *ConsignmentService) RecordConsignmentDamage(ctx context.Context, tenantID, consignmentID uuid.UUID, quantity decimal.Decimal) (*ConsignmentResponse, error) {
	return s.mutateConsignment(ctx, tenantID, consignmentID, func(c *stock.ConsignmentStock) error {
		return c.RecordDamage(quantity)
	})
}

// RecordConsignmentPayment settles part or all of the outstanding payable
func (s *ConsignmentService) RecordConsignmentPayment(ctx context.Context, tenantID, consignmentID uuid.UUID, amount decimal.Decimal) (*ConsignmentResponse, error) {
	return s.mutateConsignment(ctx, tenantID, consignmentID, func(c *stock.ConsignmentStock) error {
		return c.RecordPayment(amount)
	})
}

// ReconciliationResult describes one reconciled agreement
type ReconciliationResult struct {
	ConsignmentID   uuid.UUID       `json:"consignment_id"`
	AgreementNumber string          `json:"agreement_number"`
	SupplierID      uuid.UUID       `json:"supplier_id"`
	PayableAmount   decimal.Decimal `json:"payable_amount"`
}

// ReconciliationStats contains statistics about one reconciliation sweep
type ReconciliationStats struct {
	TotalDue     int                    `json:"total_due"`
	Reconciled   int                    `json:"reconciled"`
	Failed       int                    `json:"failed"`
	TotalPayable decimal.Decimal        `json:"total_payable"`
	Results      []ReconciliationResult `json:"results"`
	ProcessedAt  time.Time              `json:"processed_at"`
}

// RunReconciliation reconciles every agreement whose reconciliation date has
// arrived, one transaction per agreement. Reconciling computes the payable
// owed and advances the next date; it does not record payments.
func (s *ConsignmentService) RunReconciliation(ctx context.Context, tenantID uuid.UUID) (*ReconciliationStats, error) {
	now := s.clock.Now()
	stats := &ReconciliationStats{TotalPayable: decimal.Zero, ProcessedAt: now}

	due, err := s.consignmentRepo.FindDueForReconciliation(ctx, tenantID, now)
	if err != nil {
		s.logger.Error("Failed to find agreements due for reconciliation", zap.Error(err))
		return nil, err
	}

	stats.TotalDue = len(due)
	for i := range due {
		var (
			consignment *stock.ConsignmentStock
			payable     decimal.Decimal
		)
		err := withConcurrencyRetry(func() error {
			return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
				var err error
				consignment, err = repos.ConsignmentRepo().FindByIDForTenant(ctx, tenantID, due[i].ID)
				if err != nil {
					return err
				}
				payable, err = consignment.Reconcile(now)
				if err != nil {
					return err
				}
				return repos.ConsignmentRepo().SaveWithLock(ctx, consignment)
			})
		})
		if err != nil {
			s.logger.Error("Failed to reconcile agreement",
				zap.String("agreement_number", due[i].AgreementNumber),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}

		stats.Reconciled++
		stats.TotalPayable = stats.TotalPayable.Add(payable)
		stats.Results = append(stats.Results, ReconciliationResult{
			ConsignmentID:   consignment.ID,
			AgreementNumber: consignment.AgreementNumber,
			SupplierID:      consignment.SupplierID,
			PayableAmount:   payable,
		})
	}

	if stats.TotalDue > 0 {
		s.logger.Info("Completed consignment reconciliation",
			zap.Int("due", stats.TotalDue),
			zap.Int("reconciled", stats.Reconciled),
			zap.Int("failed", stats.Failed),
			zap.String("total_payable", stats.TotalPayable.String()),
		)
	}

	return stats, nil
}

// CloseConsignment ends an agreement once all stock is off hand and the
// payable is settled
func (s *ConsignmentService) CloseConsignment(ctx context.Context, tenantID, consignmentID uuid.UUID) (*ConsignmentResponse, error) {
	response, err := s.mutateConsignment(ctx, tenantID, consignmentID, func(c *stock.ConsignmentStock) error {
		return c.Close()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Closed consignment agreement",
		zap.String("agreement_number", response.AgreementNumber),
	)
	return response, nil
}

// GetConsignment retrieves a consignment record by ID
func (s *ConsignmentService) GetConsignment(ctx context.Context, tenantID, consignmentID uuid.UUID) (*ConsignmentResponse, error) {
	consignment, err := s.consignmentRepo.FindByIDForTenant(ctx, tenantID, consignmentID)
	if err != nil {
		return nil, err
	}
	response := ToConsignmentResponse(consignment)
	return &response, nil
}

// GetConsignmentByAgreement retrieves a consignment record by agreement number
func (s *ConsignmentService) GetConsignmentByAgreement(ctx context.Context, tenantID uuid.UUID, agreementNumber string) (*ConsignmentResponse, error) {
	consignment, err := s.consignmentRepo.FindByAgreementNumber(ctx, tenantID, agreementNumber)
	if err != nil {
		return nil, err
	}
	response := ToConsignmentResponse(consignment)
	return &response, nil
}

// ListConsignmentsBySupplier retrieves consignment records for a supplier
func (s *ConsignmentService) ListConsignmentsBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID, filter shared.Filter) ([]ConsignmentResponse, error) {
	consignments, err := s.consignmentRepo.FindBySupplier(ctx, tenantID, supplierID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]ConsignmentResponse, len(consignments))
	for i := range consignments {
		responses[i] = ToConsignmentResponse(&consignments[i])
	}
	return responses, nil
}

// GetOutstandingBySupplier sums the payable owed to a supplier across all of
// their active agreements
func (s *ConsignmentService) GetOutstandingBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID) (decimal.Decimal, error) {
	return s.consignmentRepo.SumOutstandingBySupplier(ctx, tenantID, supplierID)
}
