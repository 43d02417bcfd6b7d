// Package memstore keeps the shop in process memory. Transactions are
// serialized behind one mutex and rolled back from an undo journal, so it
// gives the same all-or-nothing behavior as the Postgres store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/storage"
	"github.com/shopspring/decimal"
)

type checkoutKey struct {
	userID int64
	key    string
}

type Store struct {
	mu sync.Mutex

	products map[int64]catalog.Product
	types    map[int64]catalog.ClothType
	stock    map[inventory.Key]int
	orders   map[int64]orders.Order
	keys     map[checkoutKey]int64

	nextProduct int64
	nextType    int64
	nextOrder   int64
	nextItem    int64

	// Fail, when set, is asked before every store operation; a non-nil
	// result is returned as a storage failure.
	Fail func(op string) error
}

func New() *Store {
	return &Store{
		products: map[int64]catalog.Product{},
		types:    map[int64]catalog.ClothType{},
		stock:    map[inventory.Key]int{},
		orders:   map[int64]orders.Order{},
		keys:     map[checkoutKey]int64{},
	}
}

// WithinTx runs fn with exclusive access to the store. Every change fn made
// is undone when it returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return storage.Wrap("begin", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := s.check("commit"); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) WithinStockTx(ctx context.Context, fn func(inventory.StockTx) error) error {
	return s.WithinTx(ctx, func(t orders.Tx) error { return fn(t) })
}

func (s *Store) check(op string) error {
	if s.Fail == nil {
		return nil
	}
	if err := s.Fail(op); err != nil {
		return storage.Wrap(op, err)
	}
	return nil
}

// catalog.Store

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list products"); err != nil {
		return nil, err
	}
	totals := map[int64]int{}
	for k, n := range s.stock {
		totals[k.ProductID] += n
	}
	out := make([]catalog.Summary, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, catalog.Summary{Product: p, TotalStock: totals[p.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get product"); err != nil {
		return catalog.Product{}, err
	}
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create product"); err != nil {
		return err
	}
	if _, ok := s.types[p.ClothTypeID]; p.ClothTypeID != 0 && !ok {
		return fmt.Errorf("%w: unknown cloth type %d", catalog.ErrInvalidProduct, p.ClothTypeID)
	}
	s.nextProduct++
	p.ID = s.nextProduct
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update price"); err != nil {
		return err
	}
	p, ok := s.products[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Price = price
	s.products[id] = p
	return nil
}

func (s *Store) ListClothTypes(ctx context.Context) ([]catalog.ClothType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list cloth types"); err != nil {
		return nil, err
	}
	out := make([]catalog.ClothType, 0, len(s.types))
	for _, ct := range s.types {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) CreateClothType(ctx context.Context, ct *catalog.ClothType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create cloth type"); err != nil {
		return err
	}
	for _, existing := range s.types {
		if existing.Name == ct.Name {
			return catalog.ErrClothTypeExists
		}
	}
	s.nextType++
	ct.ID = s.nextType
	s.types[ct.ID] = *ct
	return nil
}

func (s *Store) DeleteClothType(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete cloth type"); err != nil {
		return err
	}
	if _, ok := s.types[id]; !ok {
		return catalog.ErrClothTypeNotFound
	}
	for _, p := range s.products {
		if p.ClothTypeID == id {
			return catalog.ErrClothTypeInUse
		}
	}
	delete(s.types, id)
	return nil
}

// tx is only used while Store.mu is held.
type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) setStock(k inventory.Key, v int) {
	prev, had := t.s.stock[k]
	t.undo = append(t.undo, func() {
		if had {
			t.s.stock[k] = prev
		} else {
			delete(t.s.stock, k)
		}
	})
	t.s.stock[k] = v
}

func (t *tx) Product(ctx context.Context, id int64) (catalog.Product, error) {
	if err := t.s.check("product"); err != nil {
		return catalog.Product{}, err
	}
	p, ok := t.s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (t *tx) StockLevel(ctx context.Context, k inventory.Key) (int, error) {
	if err := t.s.check("stock level"); err != nil {
		return 0, err
	}
	return t.s.stock[k], nil
}

func (t *tx) DecrementIfAvailable(ctx context.Context, k inventory.Key, qty int) (bool, error) {
	if err := t.s.check("reserve stock"); err != nil {
		return false, err
	}
	cur, ok := t.s.stock[k]
	if !ok || cur < qty {
		return false, nil
	}
	t.setStock(k, cur-qty)
	return true, nil
}

func (t *tx) Increment(ctx context.Context, k inventory.Key, qty int) error {
	if err := t.s.check("release stock"); err != nil {
		return err
	}
	t.setStock(k, t.s.stock[k]+qty)
	return nil
}

func (t *tx) PutStock(ctx context.Context, k inventory.Key, value int) error {
	if err := t.s.check("set stock"); err != nil {
		return err
	}
	t.setStock(k, value)
	return nil
}

func (t *tx) StockLevels(ctx context.Context, productID int64) (map[string]int, error) {
	if err := t.s.check("stock levels"); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for k, n := range t.s.stock {
		if k.ProductID == productID {
			out[k.Size] = n
		}
	}
	return out, nil
}

func (t *tx) OrderByCheckoutKey(ctx context.Context, userID int64, key string) (orders.Order, bool, error) {
	if err := t.s.check("order by checkout key"); err != nil {
		return orders.Order{}, false, err
	}
	id, ok := t.s.keys[checkoutKey{userID, key}]
	if !ok {
		return orders.Order{}, false, nil
	}
	return clone(t.s.orders[id]), true, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if err := t.s.check("insert order"); err != nil {
		return err
	}
	if o.CheckoutKey != "" {
		if _, dup := t.s.keys[checkoutKey{o.UserID, o.CheckoutKey}]; dup {
			return orders.ErrDuplicateCheckout
		}
	}

	prevOrder, prevItem := t.s.nextOrder, t.s.nextItem
	t.s.nextOrder++
	o.ID = t.s.nextOrder
	for i := range o.Items {
		t.s.nextItem++
		o.Items[i].ID = t.s.nextItem
		o.Items[i].OrderID = o.ID
	}
	t.s.orders[o.ID] = clone(*o)
	if o.CheckoutKey != "" {
		t.s.keys[checkoutKey{o.UserID, o.CheckoutKey}] = o.ID
	}

	id, ck := o.ID, checkoutKey{o.UserID, o.CheckoutKey}
	t.undo = append(t.undo, func() {
		delete(t.s.orders, id)
		delete(t.s.keys, ck)
		t.s.nextOrder, t.s.nextItem = prevOrder, prevItem
	})
	return nil
}

func (t *tx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) SetOrderStatus(ctx context.Context, id int64, st orders.Status) error {
	if err := t.s.check("set order status"); err != nil {
		return err
	}
	o, ok := t.s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	prev := o.Status
	o.Status = st
	t.s.orders[id] = o
	t.undo = append(t.undo, func() {
		o := t.s.orders[id]
		o.Status = prev
		t.s.orders[id] = o
	})
	return nil
}

func (t *tx) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	if err := t.s.check("get order"); err != nil {
		return orders.Order{}, err
	}
	o, ok := t.s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return clone(o), nil
}

func (t *tx) ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	if err := t.s.check("list orders"); err != nil {
		return nil, err
	}
	out := []orders.Order{}
	for _, o := range t.s.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		o.Items = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func clone(o orders.Order) orders.Order {
	o.Items = append([]orders.Item(nil), o.Items...)
	return o
}
