package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/storage"
	"github.com/jackc/pgx/v5"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Product(ctx context.Context, id int64) (catalog.Product, error) {
	return getProduct(ctx, t.tx, id)
}

func (t *pgTx) StockLevel(ctx context.Context, k inventory.Key) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT stock FROM stock_entries WHERE product_id=$1 AND size_label=$2`,
		k.ProductID, k.Size).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, storage.Wrap("stock level", err)
}

// DecrementIfAvailable relies on the row lock taken by UPDATE: concurrent
// reservations of one entry are applied one after another, each seeing the
// previous result.
func (t *pgTx) DecrementIfAvailable(ctx context.Context, k inventory.Key, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE stock_entries SET stock = stock - $3
		WHERE product_id=$1 AND size_label=$2 AND stock >= $3`,
		k.ProductID, k.Size, qty)
	if err != nil {
		return false, storage.Wrap("reserve stock", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) Increment(ctx context.Context, k inventory.Key, qty int) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_entries(product_id, size_label, stock) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, size_label) DO UPDATE SET stock = stock_entries.stock + EXCLUDED.stock`,
		k.ProductID, k.Size, qty)
	return storage.Wrap("release stock", err)
}

func (t *pgTx) PutStock(ctx context.Context, k inventory.Key, value int) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_entries(product_id, size_label, stock) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, size_label) DO UPDATE SET stock = EXCLUDED.stock`,
		k.ProductID, k.Size, value)
	return storage.Wrap("set stock", err)
}

func (t *pgTx) StockLevels(ctx context.Context, productID int64) (map[string]int, error) {
	rows, err := t.tx.Query(ctx, `SELECT size_label, stock FROM stock_entries WHERE product_id=$1`, productID)
	if err != nil {
		return nil, storage.Wrap("stock levels", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var size string
		var n int
		if err := rows.Scan(&size, &n); err != nil {
			return nil, storage.Wrap("stock levels", err)
		}
		out[size] = n
	}
	return out, storage.Wrap("stock levels", rows.Err())
}

func (t *pgTx) OrderByCheckoutKey(ctx context.Context, userID int64, key string) (orders.Order, bool, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM orders WHERE user_id=$1 AND checkout_key=$2`, userID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, storage.Wrap("order by checkout key", err)
	}
	o, err := t.loadOrder(ctx, id, false)
	if err != nil {
		return orders.Order{}, false, err
	}
	return o, true, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	var key *string
	if o.CheckoutKey != "" {
		key = &o.CheckoutKey
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, order_date, total_amount, status, checkout_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		o.UserID, o.OrderDate, o.TotalAmount, string(o.Status), key,
	).Scan(&o.ID)
	if pgCode(err) == uniqueViolation {
		return orders.ErrDuplicateCheckout
	}
	if err != nil {
		return storage.Wrap("insert order", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, size_label, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			o.ID, it.ProductID, it.Size, it.Quantity, it.Price,
		).Scan(&it.ID)
		if err != nil {
			return storage.Wrap("insert order item", err)
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.loadOrder(ctx, id, true)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id int64, st orders.Status) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, string(st))
	if err != nil {
		return storage.Wrap("set order status", err)
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.loadOrder(ctx, id, false)
}

func (t *pgTx) ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	q := `SELECT id, user_id, order_date, total_amount, status FROM orders`
	var args []any
	if f.UserID != 0 {
		q += ` WHERE user_id=$1`
		args = append(args, f.UserID)
	}
	q += ` ORDER BY order_date DESC, id DESC`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, storage.Wrap("list orders", err)
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		var o orders.Order
		var st string
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderDate, &o.TotalAmount, &st); err != nil {
			return nil, storage.Wrap("list orders", err)
		}
		o.Status = orders.Status(st)
		out = append(out, o)
	}
	return out, storage.Wrap("list orders", rows.Err())
}

// loadOrder reads an order and its items. With lock set the order row stays
// locked until the transaction ends, so a concurrent cancel or delivery of
// the same order waits and then sees the new status.
func (t *pgTx) loadOrder(ctx context.Context, id int64, lock bool) (orders.Order, error) {
	q := `SELECT id, user_id, order_date, total_amount, status, COALESCE(checkout_key, '')
		FROM orders WHERE id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	var o orders.Order
	var st string
	err := t.tx.QueryRow(ctx, q, id).Scan(&o.ID, &o.UserID, &o.OrderDate, &o.TotalAmount, &st, &o.CheckoutKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, storage.Wrap("load order", err)
	}
	o.Status = orders.Status(st)

	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, size_label, quantity, price
		FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return orders.Order{}, storage.Wrap("load order items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Size, &it.Quantity, &it.Price); err != nil {
			return orders.Order{}, storage.Wrap("load order items", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return orders.Order{}, storage.Wrap("load order items", err)
	}
	return o, nil
}
