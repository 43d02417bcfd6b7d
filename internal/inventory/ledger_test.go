package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, st *memstore.Store) int64 {
	t.Helper()
	p := catalog.Product{Name: "tee", Price: decimal.RequireFromString("12.00")}
	require.NoError(t, st.CreateProduct(context.Background(), &p))
	return p.ID
}

// inTx runs fn against a ledger inside one store transaction.
func inTx(t *testing.T, st *memstore.Store, fn func(l inventory.Ledger) error) error {
	t.Helper()
	return st.WithinStockTx(context.Background(), func(tx inventory.StockTx) error {
		return fn(inventory.NewLedger(tx))
	})
}

func TestNormalizeSize(t *testing.T) {
	s, err := inventory.NormalizeSize(" xl ")
	require.NoError(t, err)
	assert.Equal(t, "XL", s)

	_, err = inventory.NormalizeSize("")
	assert.ErrorIs(t, err, inventory.ErrInvalidSize)
	_, err = inventory.NormalizeSize("EXTRA-EXTRA-LARGE")
	assert.ErrorIs(t, err, inventory.ErrInvalidSize)
}

func TestLedger_ReserveRelease(t *testing.T) {
	st := memstore.New()
	pid := newProduct(t, st)
	ctx := context.Background()

	require.NoError(t, inTx(t, st, func(l inventory.Ledger) error { return l.SetStock(ctx, pid, "m", 3) }))

	var n int
	require.NoError(t, inTx(t, st, func(l inventory.Ledger) error {
		if err := l.Reserve(ctx, pid, "M", 2); err != nil {
			return err
		}
		var err error
		n, err = l.GetStock(ctx, pid, "M")
		return err
	}))
	assert.Equal(t, 1, n)

	err := inTx(t, st, func(l inventory.Ledger) error { return l.Reserve(ctx, pid, "M", 2) })
	var ise *inventory.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "M", ise.Size)
	assert.Equal(t, 2, ise.Requested)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, "not enough stock for size M (requested 2, available 1)", err.Error())

	require.NoError(t, inTx(t, st, func(l inventory.Ledger) error { return l.Release(ctx, pid, "M", 2) }))
	require.NoError(t, inTx(t, st, func(l inventory.Ledger) error {
		var err error
		n, err = l.GetStock(ctx, pid, "M")
		return err
	}))
	assert.Equal(t, 3, n)
}

func TestLedger_ReleaseCreatesEntry(t *testing.T) {
	st := memstore.New()
	pid := newProduct(t, st)
	ctx := context.Background()

	var levels map[string]int
	require.NoError(t, inTx(t, st, func(l inventory.Ledger) error {
		if err := l.Release(ctx, pid, "S", 4); err != nil {
			return err
		}
		var err error
		levels, err = l.StockFor(ctx, pid)
		return err
	}))
	assert.Equal(t, map[string]int{"S": 4}, levels)
}

func TestLedger_InvalidAmounts(t *testing.T) {
	st := memstore.New()
	pid := newProduct(t, st)
	ctx := context.Background()

	err := inTx(t, st, func(l inventory.Ledger) error { return l.Reserve(ctx, pid, "M", 0) })
	assert.ErrorIs(t, err, inventory.ErrInvalidAmount)
	err = inTx(t, st, func(l inventory.Ledger) error { return l.Release(ctx, pid, "M", -1) })
	assert.ErrorIs(t, err, inventory.ErrInvalidAmount)
	err = inTx(t, st, func(l inventory.Ledger) error { return l.SetStock(ctx, pid, "M", -1) })
	assert.ErrorIs(t, err, inventory.ErrInvalidAmount)
}

func TestLedger_UnknownProduct(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	err := inTx(t, st, func(l inventory.Ledger) error { return l.SetStock(ctx, 42, "M", 1) })
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	err = inTx(t, st, func(l inventory.Ledger) error {
		_, err := l.StockFor(ctx, 42)
		return err
	})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestLedger_GetStockUnknownSizeIsZero(t *testing.T) {
	st := memstore.New()
	pid := newProduct(t, st)

	var n int
	require.NoError(t, inTx(t, st, func(l inventory.Ledger) error {
		var err error
		n, err = l.GetStock(context.Background(), pid, "XS")
		return err
	}))
	assert.Zero(t, n)
}
