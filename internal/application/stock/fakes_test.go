package stock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func paginate[T any](items []T, f shared.Filter) []T {
	if f.PageSize <= 0 {
		return items
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * f.PageSize
	if start >= len(items) {
		return nil
	}
	end := start + f.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// fakeLineRepo is an in-memory StockLineRepository. Reads hand out copies so
// a rolled-back mutation on the caller's copy never leaks into the store;
// conflictsLeft makes the next N SaveWithLock calls fail with a version
// conflict to exercise the retry path.
type fakeLineRepo struct {
	mu            sync.Mutex
	lines         map[uuid.UUID]*stock.StockLine
	conflictsLeft int
}

func newFakeLineRepo() *fakeLineRepo {
	return &fakeLineRepo{lines: make(map[uuid.UUID]*stock.StockLine)}
}

func copyLine(l *stock.StockLine) *stock.StockLine {
	c := *l
	return &c
}

func (r *fakeLineRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lines[id]; ok {
		return copyLine(l), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLineRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lines[id]; ok && l.TenantID == tenantID {
		return copyLine(l), nil
	}
	return nil, shared.ErrNotFound
}

func sameLocation(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *fakeLineRepo) FindByCoordinate(_ context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.ProductID == productID && l.WarehouseID == warehouseID &&
			sameLocation(l.LocationID, locationID) && l.LotNumber == lotNumber {
			return copyLine(l), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLineRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockLine
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.ProductID == productID {
			out = append(out, *l)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLineRepo) FindByWarehouse(_ context.Context, tenantID, warehouseID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockLine
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.WarehouseID == warehouseID {
			out = append(out, *l)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLineRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockLine
	for _, l := range r.lines {
		if l.TenantID == tenantID {
			out = append(out, *l)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLineRepo) FindWithStock(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockLine
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.CurrentQuantity.IsPositive() {
			out = append(out, *l)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLineRepo) Save(_ context.Context, line *stock.StockLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[line.ID] = copyLine(line)
	return nil
}

func (r *fakeLineRepo) SaveWithLock(_ context.Context, line *stock.StockLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return shared.ErrConcurrencyConflict
	}
	r.lines[line.ID] = copyLine(line)
	return nil
}

func (r *fakeLineRepo) GetOrCreate(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, locationID *uuid.UUID, lotNumber string) (*stock.StockLine, error) {
	if line, err := r.FindByCoordinate(ctx, tenantID, productID, warehouseID, locationID, lotNumber); err == nil {
		return line, nil
	}
	line, err := stock.NewStockLine(tenantID, productID, warehouseID, locationID, lotNumber, "")
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.lines[line.ID] = copyLine(line)
	r.mu.Unlock()
	return line, nil
}

func (r *fakeLineRepo) SumQuantityByProduct(_ context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.ProductID == productID {
			sum = sum.Add(l.CurrentQuantity)
		}
	}
	return sum, nil
}

func (r *fakeLineRepo) SumAvailableByProduct(_ context.Context, tenantID, productID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.ProductID == productID {
			sum = sum.Add(l.AvailableQuantity())
		}
	}
	return sum, nil
}

func (r *fakeLineRepo) SumValueByWarehouse(_ context.Context, tenantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.WarehouseID == warehouseID {
			sum = sum.Add(l.TotalValue())
		}
	}
	return sum, nil
}

func (r *fakeLineRepo) CountForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.lines {
		if l.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// fakeMovementRepo is an in-memory append-only StockMovementRepository.
// Movements are kept in insertion order, which the tests treat as
// occurred_at order.
type fakeMovementRepo struct {
	mu        sync.Mutex
	movements []stock.StockMovement
}

func newFakeMovementRepo() *fakeMovementRepo {
	return &fakeMovementRepo{}
}

func (r *fakeMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.movements {
		if r.movements[i].ID == id {
			m := r.movements[i]
			return &m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeMovementRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.movements {
		if r.movements[i].ID == id && r.movements[i].TenantID == tenantID {
			m := r.movements[i]
			return &m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeMovementRepo) FindByMovementNumber(_ context.Context, tenantID uuid.UUID, movementNumber string) (*stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.movements {
		if r.movements[i].TenantID == tenantID && r.movements[i].MovementNumber == movementNumber {
			m := r.movements[i]
			return &m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeMovementRepo) FindByStockLine(_ context.Context, stockLineID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockMovement
	for i := range r.movements {
		if r.movements[i].StockLineID == stockLineID {
			out = append(out, r.movements[i])
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeMovementRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lotNumber, _ := filter.Filters["lot_number"].(string)
	var out []stock.StockMovement
	for i := range r.movements {
		m := &r.movements[i]
		if m.TenantID != tenantID || m.ProductID != productID {
			continue
		}
		if lotNumber != "" && m.LotNumber != lotNumber {
			continue
		}
		out = append(out, *m)
	}
	return paginate(out, filter), nil
}

func (r *fakeMovementRepo) FindByWarehouse(_ context.Context, tenantID, warehouseID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockMovement
	for i := range r.movements {
		if r.movements[i].TenantID == tenantID && r.movements[i].WarehouseID == warehouseID {
			out = append(out, r.movements[i])
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeMovementRepo) FindByReference(_ context.Context, tenantID uuid.UUID, refType, refNumber string) ([]stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockMovement
	for i := range r.movements {
		m := &r.movements[i]
		if m.TenantID == tenantID && m.Reference.Type == refType && m.Reference.Number == refNumber {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMovementRepo) FindByDateRange(_ context.Context, tenantID uuid.UUID, start, end time.Time, filter shared.Filter) ([]stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockMovement
	for i := range r.movements {
		m := &r.movements[i]
		if m.TenantID == tenantID && !m.OccurredAt.Before(start) && !m.OccurredAt.After(end) {
			out = append(out, *m)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeMovementRepo) FindForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockMovement
	for i := range r.movements {
		if r.movements[i].TenantID == tenantID {
			out = append(out, r.movements[i])
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeMovementRepo) FindReversalOf(_ context.Context, tenantID, movementID uuid.UUID) (*stock.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.movements {
		m := &r.movements[i]
		if m.TenantID == tenantID && m.ReversalOfID != nil && *m.ReversalOfID == movementID {
			c := *m
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeMovementRepo) Create(_ context.Context, movement *stock.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *movement)
	return nil
}

func (r *fakeMovementRepo) CountForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.movements {
		if r.movements[i].TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *fakeMovementRepo) SumQuantityByTypeAndDateRange(_ context.Context, tenantID uuid.UUID, movementType stock.MovementType, start, end time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for i := range r.movements {
		m := &r.movements[i]
		if m.TenantID == tenantID && m.MovementType == movementType &&
			!m.OccurredAt.Before(start) && !m.OccurredAt.After(end) {
			sum = sum.Add(m.Quantity)
		}
	}
	return sum, nil
}

// fakeReservationRepo is an in-memory StockReservationRepository
type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*stock.StockReservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uuid.UUID]*stock.StockReservation)}
}

func copyReservation(r *stock.StockReservation) *stock.StockReservation {
	c := *r
	return &c
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.reservations[id]; ok {
		return copyReservation(res), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeReservationRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.reservations[id]; ok && res.TenantID == tenantID {
		return copyReservation(res), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeReservationRepo) FindByReservationNumber(_ context.Context, tenantID uuid.UUID, reservationNumber string) (*stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.ReservationNumber == reservationNumber {
			return copyReservation(res), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeReservationRepo) FindByStockLine(_ context.Context, stockLineID uuid.UUID, filter shared.Filter) ([]stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockReservation
	for _, res := range r.reservations {
		if res.StockLineID == stockLineID {
			out = append(out, *res)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeReservationRepo) FindOpenByStockLine(_ context.Context, stockLineID uuid.UUID) ([]stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockReservation
	for _, res := range r.reservations {
		if res.StockLineID == stockLineID && !res.Status.IsTerminal() {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) FindByReference(_ context.Context, tenantID uuid.UUID, refType, refNumber string) ([]stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockReservation
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.Reference.Type == refType && res.Reference.Number == refNumber {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) FindByStatus(_ context.Context, tenantID uuid.UUID, status stock.ReservationStatus, filter shared.Filter) ([]stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockReservation
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.Status == status {
			out = append(out, *res)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeReservationRepo) FindExpired(_ context.Context, asOf time.Time, limit int) ([]stock.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockReservation
	for _, res := range r.reservations {
		if res.IsExpired(asOf) {
			out = append(out, *res)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) Save(_ context.Context, reservation *stock.StockReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[reservation.ID] = copyReservation(reservation)
	return nil
}

func (r *fakeReservationRepo) SaveWithLock(_ context.Context, reservation *stock.StockReservation) error {
	return r.Save(context.Background(), reservation)
}

func (r *fakeReservationRepo) CountForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// fakeLotRepo is an in-memory LotBatchRepository
type fakeLotRepo struct {
	mu   sync.Mutex
	lots map[uuid.UUID]*stock.LotBatch
}

func newFakeLotRepo() *fakeLotRepo {
	return &fakeLotRepo{lots: make(map[uuid.UUID]*stock.LotBatch)}
}

func copyLot(b *stock.LotBatch) *stock.LotBatch {
	c := *b
	return &c
}

func (r *fakeLotRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.lots[id]; ok {
		return copyLot(b), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLotRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.lots[id]; ok && b.TenantID == tenantID {
		return copyLot(b), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLotRepo) FindByLotNumber(_ context.Context, tenantID, productID uuid.UUID, lotNumber string) (*stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.lots {
		if b.TenantID == tenantID && b.ProductID == productID && b.LotNumber == lotNumber {
			return copyLot(b), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLotRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.LotBatch
	for _, b := range r.lots {
		if b.TenantID == tenantID && b.ProductID == productID {
			out = append(out, *b)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLotRepo) FindReservable(_ context.Context, tenantID, productID uuid.UUID) ([]stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.LotBatch
	for _, b := range r.lots {
		if b.TenantID == tenantID && b.ProductID == productID &&
			b.Status == stock.LotBatchStatusActive && b.AvailableQuantity().IsPositive() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeLotRepo) FindExpiringSoon(_ context.Context, tenantID uuid.UUID, asOf time.Time, withinDays int, filter shared.Filter) ([]stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := asOf.AddDate(0, 0, withinDays)
	var out []stock.LotBatch
	for _, b := range r.lots {
		if b.TenantID != tenantID || b.ExpiryDate == nil || !b.CurrentQuantity.IsPositive() {
			continue
		}
		if b.ExpiryDate.After(asOf) && !b.ExpiryDate.After(cutoff) {
			out = append(out, *b)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLotRepo) FindExpired(_ context.Context, tenantID uuid.UUID, asOf time.Time, filter shared.Filter) ([]stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.LotBatch
	for _, b := range r.lots {
		if b.TenantID == tenantID && b.IsExpired(asOf) && b.Status != stock.LotBatchStatusExpired &&
			b.Status != stock.LotBatchStatusRecalled {
			out = append(out, *b)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLotRepo) FindByStatus(_ context.Context, tenantID uuid.UUID, status stock.LotBatchStatus, filter shared.Filter) ([]stock.LotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.LotBatch
	for _, b := range r.lots {
		if b.TenantID == tenantID && b.Status == status {
			out = append(out, *b)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeLotRepo) Save(_ context.Context, batch *stock.LotBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[batch.ID] = copyLot(batch)
	return nil
}

func (r *fakeLotRepo) SaveWithLock(ctx context.Context, batch *stock.LotBatch) error {
	return r.Save(ctx, batch)
}

func (r *fakeLotRepo) CountForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.lots {
		if b.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// fakeSerialRepo is an in-memory SerialNumberRepository
type fakeSerialRepo struct {
	mu      sync.Mutex
	serials map[uuid.UUID]*stock.SerialNumber
}

func newFakeSerialRepo() *fakeSerialRepo {
	return &fakeSerialRepo{serials: make(map[uuid.UUID]*stock.SerialNumber)}
}

func copySerial(s *stock.SerialNumber) *stock.SerialNumber {
	c := *s
	return &c
}

func (r *fakeSerialRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.serials[id]; ok {
		return copySerial(s), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSerialRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.serials[id]; ok && s.TenantID == tenantID {
		return copySerial(s), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSerialRepo) FindBySerial(_ context.Context, tenantID, productID uuid.UUID, serial string) (*stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.serials {
		if s.TenantID == tenantID && s.ProductID == productID && s.Serial == serial {
			return copySerial(s), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSerialRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.SerialNumber
	for _, s := range r.serials {
		if s.TenantID == tenantID && s.ProductID == productID {
			out = append(out, *s)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeSerialRepo) FindByStatus(_ context.Context, tenantID uuid.UUID, status stock.SerialStatus, filter shared.Filter) ([]stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.SerialNumber
	for _, s := range r.serials {
		if s.TenantID == tenantID && s.Status == status {
			out = append(out, *s)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeSerialRepo) FindByCustomer(_ context.Context, tenantID, customerID uuid.UUID, filter shared.Filter) ([]stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.SerialNumber
	for _, s := range r.serials {
		if s.TenantID == tenantID && s.CustomerID != nil && *s.CustomerID == customerID {
			out = append(out, *s)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeSerialRepo) FindInStockByProduct(_ context.Context, tenantID, productID, warehouseID uuid.UUID, limit int) ([]stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.SerialNumber
	for _, s := range r.serials {
		if s.TenantID == tenantID && s.ProductID == productID && s.Status == stock.SerialStatusInStock &&
			s.WarehouseID != nil && *s.WarehouseID == warehouseID {
			out = append(out, *s)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeSerialRepo) ExistsBySerial(ctx context.Context, tenantID, productID uuid.UUID, serial string) (bool, error) {
	_, err := r.FindBySerial(ctx, tenantID, productID, serial)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *fakeSerialRepo) Save(_ context.Context, serial *stock.SerialNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serials[serial.ID] = copySerial(serial)
	return nil
}

func (r *fakeSerialRepo) SaveWithLock(ctx context.Context, serial *stock.SerialNumber) error {
	return r.Save(ctx, serial)
}

func (r *fakeSerialRepo) CountByStatus(_ context.Context, tenantID, productID uuid.UUID, status stock.SerialStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.serials {
		if s.TenantID == tenantID && s.ProductID == productID && s.Status == status {
			n++
		}
	}
	return n, nil
}

// fakeConsignmentRepo is an in-memory ConsignmentStockRepository
type fakeConsignmentRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*stock.ConsignmentStock
}

func newFakeConsignmentRepo() *fakeConsignmentRepo {
	return &fakeConsignmentRepo{records: make(map[uuid.UUID]*stock.ConsignmentStock)}
}

func copyConsignment(c *stock.ConsignmentStock) *stock.ConsignmentStock {
	cp := *c
	return &cp
}

func (r *fakeConsignmentRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.ConsignmentStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.records[id]; ok {
		return copyConsignment(c), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeConsignmentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*stock.ConsignmentStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.records[id]; ok && c.TenantID == tenantID {
		return copyConsignment(c), nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeConsignmentRepo) FindByAgreementNumber(_ context.Context, tenantID uuid.UUID, agreementNumber string) (*stock.ConsignmentStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.records {
		if c.TenantID == tenantID && c.AgreementNumber == agreementNumber {
			return copyConsignment(c), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeConsignmentRepo) FindBySupplier(_ context.Context, tenantID, supplierID uuid.UUID, filter shared.Filter) ([]stock.ConsignmentStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.ConsignmentStock
	for _, c := range r.records {
		if c.TenantID == tenantID && c.SupplierID == supplierID {
			out = append(out, *c)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeConsignmentRepo) FindDueForReconciliation(_ context.Context, tenantID uuid.UUID, asOf time.Time) ([]stock.ConsignmentStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.ConsignmentStock
	for _, c := range r.records {
		if c.TenantID == tenantID && c.Status == stock.ConsignmentStatusActive && !asOf.Before(c.NextReconciliationDate) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConsignmentRepo) FindActiveForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.ConsignmentStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.ConsignmentStock
	for _, c := range r.records {
		if c.TenantID == tenantID && c.Status == stock.ConsignmentStatusActive {
			out = append(out, *c)
		}
	}
	return paginate(out, filter), nil
}

func (r *fakeConsignmentRepo) Save(_ context.Context, consignment *stock.ConsignmentStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[consignment.ID] = copyConsignment(consignment)
	return nil
}

func (r *fakeConsignmentRepo) SaveWithLock(ctx context.Context, consignment *stock.ConsignmentStock) error {
	return r.Save(ctx, consignment)
}

func (r *fakeConsignmentRepo) SumOutstandingBySupplier(_ context.Context, tenantID, supplierID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, c := range r.records {
		if c.TenantID == tenantID && c.SupplierID == supplierID {
			sum = sum.Add(c.OutstandingAmount())
		}
	}
	return sum, nil
}

// fakeSequenceRepo hands out numbers from in-memory counters
type fakeSequenceRepo struct {
	mu       sync.Mutex
	counters map[string]int
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{counters: make(map[string]int)}
}

func (r *fakeSequenceRepo) Next(_ context.Context, tenantID uuid.UUID, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantID.String() + ":" + prefix
	r.counters[key]++
	return fmt.Sprintf("%s-%06d", prefix, r.counters[key]), nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *fakePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

// fakeIdempotencyStore is an in-memory IdempotencyStore
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *fakeIdempotencyStore) Close() error {
	return nil
}

// testEnv bundles all fakes behind a NoOpTransactionScope
type testEnv struct {
	lines        *fakeLineRepo
	movements    *fakeMovementRepo
	reservations *fakeReservationRepo
	lots         *fakeLotRepo
	serials      *fakeSerialRepo
	consignments *fakeConsignmentRepo
	sequences    *fakeSequenceRepo
	publisher    *fakePublisher
	scope        *NoOpTransactionScope
}

func newTestEnv() *testEnv {
	env := &testEnv{
		lines:        newFakeLineRepo(),
		movements:    newFakeMovementRepo(),
		reservations: newFakeReservationRepo(),
		lots:         newFakeLotRepo(),
		serials:      newFakeSerialRepo(),
		consignments: newFakeConsignmentRepo(),
		sequences:    newFakeSequenceRepo(),
		publisher:    &fakePublisher{},
	}
	env.scope = NewNoOpTransactionScope(
		env.lines, env.movements, env.reservations,
		env.lots, env.serials, env.consignments, env.sequences,
	)
	return env
}
