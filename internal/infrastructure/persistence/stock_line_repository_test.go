package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockStockLineRepository creates a GormStockLineRepository with a mocked SQL connection
func newMockStockLineRepository(t *testing.T) (*GormStockLineRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormStockLineRepository(gormDB), mock, mockDB
}

func stockLineColumns() []string {
	return []string{
		"id", "tenant_id", "product_id", "warehouse_id", "location_id",
		"lot_number", "current_quantity", "reserved_quantity", "unit_cost",
		"unit_of_measure", "version",
	}
}

func TestNewGormStockLineRepository(t *testing.T) {
	t.Run("creates repository with valid DB", func(t *testing.T) {
		repo, _, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestGormStockLineRepository_FindByID(t *testing.T) {
	t.Run("finds existing stock line", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		lineID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()
		warehouseID := uuid.New()

		rows := sqlmock.NewRows(stockLineColumns()).AddRow(
			lineID, tenantID, productID, warehouseID, nil,
			"", decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.NewFromFloat(15.50),
			"PCS", 1,
		)

		mock.ExpectQuery(`SELECT \* FROM "stock_lines" WHERE id = \$1`).
			WithArgs(lineID, 1).
			WillReturnRows(rows)

		line, err := repo.FindByID(context.Background(), lineID)

		assert.NoError(t, err)
		assert.NotNil(t, line)
		assert.Equal(t, lineID, line.ID)
		assert.Equal(t, productID, line.ProductID)
		assert.Equal(t, warehouseID, line.WarehouseID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for non-existent line", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		lineID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "stock_lines" WHERE id = \$1`).
			WithArgs(lineID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		line, err := repo.FindByID(context.Background(), lineID)

		assert.Error(t, err)
		assert.Nil(t, line)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLineRepository_FindByCoordinate(t *testing.T) {
	t.Run("finds line with a null location", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		lineID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()
		warehouseID := uuid.New()

		rows := sqlmock.NewRows(stockLineColumns()).AddRow(
			lineID, tenantID, productID, warehouseID, nil,
			"LOT-2026-001", decimal.NewFromInt(40), decimal.Zero, decimal.NewFromFloat(8.25),
			"PCS", 1,
		)

		mock.ExpectQuery(`SELECT \* FROM "stock_lines" WHERE \(tenant_id = \$1 AND product_id = \$2 AND warehouse_id = \$3 AND lot_number = \$4\) AND location_id IS NULL`).
			WithArgs(tenantID, productID, warehouseID, "LOT-2026-001", 1).
			WillReturnRows(rows)

		line, err := repo.FindByCoordinate(context.Background(), tenantID, productID, warehouseID, nil, "LOT-2026-001")

		assert.NoError(t, err)
		assert.NotNil(t, line)
		assert.Equal(t, "LOT-2026-001", line.LotNumber)
		assert.Nil(t, line.LocationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("finds line with an explicit location", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		lineID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()
		warehouseID := uuid.New()
		locationID := uuid.New()

		rows := sqlmock.NewRows(stockLineColumns()).AddRow(
			lineID, tenantID, productID, warehouseID, locationID,
			"", decimal.NewFromInt(12), decimal.Zero, decimal.NewFromFloat(3.10),
			"PCS", 1,
		)

		mock.ExpectQuery(`SELECT \* FROM "stock_lines" WHERE \(tenant_id = \$1 AND product_id = \$2 AND warehouse_id = \$3 AND lot_number = \$4\) AND location_id = \$5`).
			WithArgs(tenantID, productID, warehouseID, "", locationID, 1).
			WillReturnRows(rows)

		line, err := repo.FindByCoordinate(context.Background(), tenantID, productID, warehouseID, &locationID, "")

		assert.NoError(t, err)
		assert.NotNil(t, line)
		require.NotNil(t, line.LocationID)
		assert.Equal(t, locationID, *line.LocationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown coordinate", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		warehouseID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "stock_lines"`).
			WithArgs(tenantID, productID, warehouseID, "", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		line, err := repo.FindByCoordinate(context.Background(), tenantID, productID, warehouseID, nil, "")

		assert.Nil(t, line)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLineRepository_GetOrCreate(t *testing.T) {
	t.Run("creates the line when the coordinate is missing", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		warehouseID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "stock_lines"`).
			WithArgs(tenantID, productID, warehouseID, "", 1).
			WillReturnError(gorm.ErrRecordNotFound)
		mock.ExpectExec(`INSERT INTO "stock_lines"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		line, err := repo.GetOrCreate(context.Background(), tenantID, productID, warehouseID, nil, "")

		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, productID, line.ProductID)
		assert.Equal(t, warehouseID, line.WarehouseID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns the winner's row when the insert conflicts", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		winnerID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()
		warehouseID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "stock_lines"`).
			WithArgs(tenantID, productID, warehouseID, "", 1).
			WillReturnError(gorm.ErrRecordNotFound)
		// ON CONFLICT DO NOTHING reports zero rows when another transaction
		// created the coordinate first
		mock.ExpectExec(`INSERT INTO "stock_lines"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		winner := sqlmock.NewRows(stockLineColumns()).AddRow(
			winnerID, tenantID, productID, warehouseID, nil,
			"", decimal.NewFromInt(7), decimal.Zero, decimal.NewFromFloat(2.50),
			"PCS", 1,
		)
		mock.ExpectQuery(`SELECT \* FROM "stock_lines"`).
			WithArgs(tenantID, productID, warehouseID, "", 1).
			WillReturnRows(winner)

		line, err := repo.GetOrCreate(context.Background(), tenantID, productID, warehouseID, nil, "")

		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, winnerID, line.ID)
		assert.Equal(t, "7", line.CurrentQuantity.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLineRepository_SaveWithLock(t *testing.T) {
	t.Run("updates when the version matches", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		line, err := stock.NewStockLine(tenantID, uuid.New(), uuid.New(), nil, "", "PCS")
		require.NoError(t, err)
		line.ID = uuid.New()
		line.Version = 2

		mock.ExpectExec(`UPDATE "stock_lines" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.SaveWithLock(context.Background(), line)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns concurrency conflict when no row matches the version", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		line, err := stock.NewStockLine(tenantID, uuid.New(), uuid.New(), nil, "", "PCS")
		require.NoError(t, err)
		line.ID = uuid.New()
		line.Version = 2

		mock.ExpectExec(`UPDATE "stock_lines" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), line)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLineRepository_SumQuantityByProduct(t *testing.T) {
	t.Run("sums quantity across warehouses", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()

		rows := sqlmock.NewRows([]string{"total"}).AddRow(decimal.NewFromFloat(137.5))

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(current_quantity\), 0\) as total FROM "stock_lines" WHERE tenant_id = \$1 AND product_id = \$2`).
			WithArgs(tenantID, productID).
			WillReturnRows(rows)

		total, err := repo.SumQuantityByProduct(context.Background(), tenantID, productID)

		assert.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromFloat(137.5)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns zero when no lines exist", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()

		rows := sqlmock.NewRows([]string{"total"}).AddRow(decimal.Zero)

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(current_quantity\), 0\) as total`).
			WithArgs(tenantID, productID).
			WillReturnRows(rows)

		total, err := repo.SumQuantityByProduct(context.Background(), tenantID, productID)

		assert.NoError(t, err)
		assert.True(t, total.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLineRepository_SumAvailableByProduct(t *testing.T) {
	t.Run("subtracts reservations from the sum", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()

		rows := sqlmock.NewRows([]string{"total"}).AddRow(decimal.NewFromInt(85))

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(current_quantity - reserved_quantity\), 0\) as total`).
			WithArgs(tenantID, productID).
			WillReturnRows(rows)

		total, err := repo.SumAvailableByProduct(context.Background(), tenantID, productID)

		assert.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(85)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLineRepository_FindAllForTenant(t *testing.T) {
	t.Run("applies pagination and default ordering", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		rows := sqlmock.NewRows(stockLineColumns()).AddRow(
			uuid.New(), tenantID, uuid.New(), uuid.New(), nil,
			"", decimal.NewFromInt(5), decimal.Zero, decimal.Zero,
			"PCS", 1,
		)

		mock.ExpectQuery(`SELECT \* FROM "stock_lines" WHERE tenant_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
			WithArgs(tenantID, 20).
			WillReturnRows(rows)

		lines, err := repo.FindAllForTenant(context.Background(), tenantID, shared.Filter{
			Page:     1,
			PageSize: 20,
		})

		assert.NoError(t, err)
		assert.Len(t, lines, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unsafe sort fields by falling back to the default", func(t *testing.T) {
		repo, mock, mockDB := newMockStockLineRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`ORDER BY created_at DESC`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows(stockLineColumns()))

		_, err := repo.FindAllForTenant(context.Background(), tenantID, shared.Filter{
			OrderBy: "current_quantity; DROP TABLE stock_lines",
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
