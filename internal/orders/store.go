package orders

import (
	"context"

	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
)

// Tx is everything the coordinators need inside one store transaction.
// Every method returns *storage.Error for database failures and the domain
// sentinel errors (catalog.ErrProductNotFound, ErrOrderNotFound) otherwise.
type Tx interface {
	inventory.StockTx

	// OrderByCheckoutKey finds an order the user already placed with key.
	OrderByCheckoutKey(ctx context.Context, userID int64, key string) (Order, bool, error)
	// InsertOrder stores the order and its items, filling in generated ids.
	InsertOrder(ctx context.Context, o *Order) error
	// LockOrder loads the order with its items and holds it until the
	// transaction ends.
	LockOrder(ctx context.Context, id int64) (Order, error)
	SetOrderStatus(ctx context.Context, id int64, s Status) error

	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter Filter) ([]Order, error)
}

// Filter selects orders for listings; zero UserID means every user.
type Filter struct {
	UserID int64
}

type Store interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}
