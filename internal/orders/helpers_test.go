package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/logx"
	"github.com/ariefcatur/go-clothing-orders/internal/memstore"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	alice = auth.Requester{UserID: 10, Role: auth.RoleCustomer}
	bob   = auth.Requester{UserID: 11, Role: auth.RoleCustomer}
	admin = auth.Requester{UserID: 1, Role: auth.RoleAdmin}
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*orders.Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return &orders.Service{
		Store:       st,
		ServiceName: "test",
		Log:         logx.Discard(),
		Now:         func() time.Time { return fixedNow },
	}, st
}

// addProduct creates a product with the given per-size stock and returns its id.
func addProduct(t *testing.T, st *memstore.Store, price string, stock map[string]int) int64 {
	t.Helper()
	ctx := context.Background()
	p := catalog.Product{Name: "item", Price: decimal.RequireFromString(price)}
	require.NoError(t, st.CreateProduct(ctx, &p))
	require.NoError(t, st.WithinStockTx(ctx, func(tx inventory.StockTx) error {
		l := inventory.NewLedger(tx)
		for size, n := range stock {
			if err := l.SetStock(ctx, p.ID, size, n); err != nil {
				return err
			}
		}
		return nil
	}))
	return p.ID
}

func stockOf(t *testing.T, st *memstore.Store, productID int64, size string) int {
	t.Helper()
	var n int
	require.NoError(t, st.WithinStockTx(context.Background(), func(tx inventory.StockTx) error {
		var err error
		n, err = inventory.NewLedger(tx).GetStock(context.Background(), productID, size)
		return err
	}))
	return n
}

func cart(lines ...orders.Line) orders.CheckoutRequest {
	return orders.CheckoutRequest{Items: lines}
}
