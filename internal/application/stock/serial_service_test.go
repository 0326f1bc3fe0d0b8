package stock

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSerials(env *testEnv, now time.Time) *SerialService {
	svc := NewSerialService(env.scope, env.serials, shared.FixedClock{Instant: now}, nil)
	svc.SetEventPublisher(env.publisher)
	return svc
}

func TestSerialService_RegisterSerial(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	productID := uuid.New()

	t.Run("registers a unit in stock", func(t *testing.T) {
		env := newTestEnv()
		svc := newTestSerials(env, testInstant)

		resp, err := svc.RegisterSerial(ctx, tenantID, RegisterSerialRequest{
			ProductID: productID,
			Serial:    "SN-0001",
		})
		require.NoError(t, err)
		assert.Equal(t, stock.SerialStatusInStock, resp.Status)
		assert.False(t, resp.UnderWarranty)
	})

	t.Run("rejects a duplicate serial for the same product", func(t *testing.T) {
		env := newTestEnv()
		svc := newTestSerials(env, testInstant)

		req := RegisterSerialRequest{ProductID: productID, Serial: "SN-DUP"}
		_, err := svc.RegisterSerial(ctx, tenantID, req)
		require.NoError(t, err)

		_, err = svc.RegisterSerial(ctx, tenantID, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("registers a batch and fails it on a duplicate", func(t *testing.T) {
		env := newTestEnv()
		svc := newTestSerials(env, testInstant)

		responses, err := svc.RegisterSerialBatch(ctx, tenantID, []RegisterSerialRequest{
			{ProductID: productID, Serial: "SN-B1"},
			{ProductID: productID, Serial: "SN-B2"},
		})
		require.NoError(t, err)
		assert.Len(t, responses, 2)

		_, err = svc.RegisterSerialBatch(ctx, tenantID, []RegisterSerialRequest{
			{ProductID: productID, Serial: "SN-B3"},
			{ProductID: productID, Serial: "SN-B1"},
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestSerialService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	productID := uuid.New()
	customerID := uuid.New()

	register := func(t *testing.T, env *testEnv, serial string) uuid.UUID {
		t.Helper()
		svc := newTestSerials(env, testInstant)
		resp, err := svc.RegisterSerial(ctx, tenantID, RegisterSerialRequest{ProductID: productID, Serial: serial})
		require.NoError(t, err)
		return resp.ID
	}

	t.Run("reserve, sell, return and restock", func(t *testing.T) {
		env := newTestEnv()
		serialID := register(t, env, "SN-LC1")
		svc := newTestSerials(env, testInstant)

		orderID := uuid.New()
		resp, err := svc.ReserveSerial(ctx, tenantID, serialID, &orderID)
		require.NoError(t, err)
		assert.Equal(t, stock.SerialStatusReserved, resp.Status)

		resp, err = svc.SellSerial(ctx, tenantID, SellSerialRequest{
			SerialID:       serialID,
			CustomerID:     customerID,
			SalesOrderID:   &orderID,
			WarrantyMonths: 12,
		})
		require.NoError(t, err)
		assert.Equal(t, stock.SerialStatusSold, resp.Status)
		assert.True(t, resp.UnderWarranty)
		require.NotNil(t, resp.CustomerID)
		assert.Equal(t, customerID, *resp.CustomerID)

		resp, err = svc.ReturnSerial(ctx, tenantID, serialID, "defective on arrival")
		require.NoError(t, err)
		assert.Equal(t, stock.SerialStatusReturned, resp.Status)

		resp, err = svc.RestockSerial(ctx, tenantID, serialID)
		require.NoError(t, err)
		assert.Equal(t, stock.SerialStatusInStock, resp.Status)
		assert.Nil(t, resp.CustomerID)

		assert.Contains(t, env.publisher.eventTypes(), stock.EventTypeSerialStatusChanged)
	})

	t.Run("a sold unit cannot skip the return step", func(t *testing.T) {
		env := newTestEnv()
		serialID := register(t, env, "SN-LC2")
		svc := newTestSerials(env, testInstant)

		orderID := uuid.New()
		_, err := svc.ReserveSerial(ctx, tenantID, serialID, &orderID)
		require.NoError(t, err)
		_, err = svc.SellSerial(ctx, tenantID, SellSerialRequest{SerialID: serialID, CustomerID: customerID})
		require.NoError(t, err)

		_, err = svc.ReleaseSerial(ctx, tenantID, serialID)
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
		_, err = svc.RestockSerial(ctx, tenantID, serialID)
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})

	t.Run("scrapped is terminal", func(t *testing.T) {
		env := newTestEnv()
		serialID := register(t, env, "SN-LC3")
		svc := newTestSerials(env, testInstant)

		_, err := svc.MarkSerialDamaged(ctx, tenantID, serialID, "dropped in receiving")
		require.NoError(t, err)
		resp, err := svc.ScrapSerial(ctx, tenantID, serialID, "beyond repair")
		require.NoError(t, err)
		assert.Equal(t, stock.SerialStatusScrapped, resp.Status)

		orderID := uuid.New()
		_, err = svc.ReserveSerial(ctx, tenantID, serialID, &orderID)
		assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	})

	t.Run("warranty window survives return and restock", func(t *testing.T) {
		env := newTestEnv()
		serialID := register(t, env, "SN-LC4")
		svc := newTestSerials(env, testInstant)

		orderID := uuid.New()
		_, err := svc.ReserveSerial(ctx, tenantID, serialID, &orderID)
		require.NoError(t, err)
		sold, err := svc.SellSerial(ctx, tenantID, SellSerialRequest{
			SerialID: serialID, CustomerID: customerID, WarrantyMonths: 6,
		})
		require.NoError(t, err)
		require.NotNil(t, sold.WarrantyEndDate)

		_, err = svc.ReturnSerial(ctx, tenantID, serialID, "changed mind")
		require.NoError(t, err)
		restocked, err := svc.RestockSerial(ctx, tenantID, serialID)
		require.NoError(t, err)
		assert.Equal(t, sold.WarrantyEndDate, restocked.WarrantyEndDate)
	})

	t.Run("warranty override replaces the window", func(t *testing.T) {
		env := newTestEnv()
		serialID := register(t, env, "SN-LC5")
		svc := newTestSerials(env, testInstant)

		start := testInstant
		end := testInstant.AddDate(2, 0, 0)
		resp, err := svc.OverrideSerialWarranty(ctx, tenantID, serialID, start, end, nil)
		require.NoError(t, err)
		assert.True(t, resp.UnderWarranty)

		_, err = svc.OverrideSerialWarranty(ctx, tenantID, serialID, end, start, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestSerialService_Queries(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	productID := uuid.New()

	env := newTestEnv()
	svc := newTestSerials(env, testInstant)

	for _, serial := range []string{"SN-Q1", "SN-Q2", "SN-Q3"} {
		_, err := svc.RegisterSerial(ctx, tenantID, RegisterSerialRequest{ProductID: productID, Serial: serial})
		require.NoError(t, err)
	}

	found, err := svc.GetBySerial(ctx, tenantID, productID, "SN-Q2")
	require.NoError(t, err)
	assert.Equal(t, "SN-Q2", found.Serial)

	orderID := uuid.New()
	_, err = svc.ReserveSerial(ctx, tenantID, found.ID, &orderID)
	require.NoError(t, err)

	inStock, err := svc.CountSerialsByStatus(ctx, tenantID, productID, stock.SerialStatusInStock)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inStock)

	reserved, err := svc.CountSerialsByStatus(ctx, tenantID, productID, stock.SerialStatusReserved)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reserved)
}
