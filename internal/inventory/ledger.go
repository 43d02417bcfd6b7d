package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSize       = errors.New("invalid size label")
	ErrInvalidAmount     = errors.New("invalid stock amount")
)

const maxSizeLabel = 10

// InsufficientStockError names the size that could not cover the request.
type InsufficientStockError struct {
	ProductID int64
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for size %s (requested %d, available %d)", e.Size, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type Key struct {
	ProductID int64
	Size      string
}

// StockTx is the slice of a store transaction the ledger needs.
type StockTx interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
	StockLevel(ctx context.Context, k Key) (int, error)
	// DecrementIfAvailable subtracts qty only when stock >= qty, as one
	// atomic step. It reports whether the row was changed.
	DecrementIfAvailable(ctx context.Context, k Key, qty int) (bool, error)
	// Increment adds qty, creating the entry when it does not exist.
	Increment(ctx context.Context, k Key, qty int) error
	PutStock(ctx context.Context, k Key, value int) error
	StockLevels(ctx context.Context, productID int64) (map[string]int, error)
}

// NormalizeSize trims and upper-cases a size label ("m " -> "M").
func NormalizeSize(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || len(s) > maxSizeLabel {
		return "", fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return s, nil
}

// Ledger is the authoritative per-(product, size) counter, bound to one
// transaction.
type Ledger struct {
	tx StockTx
}

func NewLedger(tx StockTx) Ledger { return Ledger{tx: tx} }

// GetStock returns 0 for a size that has never been stocked.
func (l Ledger) GetStock(ctx context.Context, productID int64, size string) (int, error) {
	size, err := NormalizeSize(size)
	if err != nil {
		return 0, err
	}
	return l.tx.StockLevel(ctx, Key{productID, size})
}

func (l Ledger) Reserve(ctx context.Context, productID int64, size string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: reserve %d", ErrInvalidAmount, qty)
	}
	size, err := NormalizeSize(size)
	if err != nil {
		return err
	}
	k := Key{productID, size}
	ok, err := l.tx.DecrementIfAvailable(ctx, k, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	available, err := l.tx.StockLevel(ctx, k)
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Size: size, Requested: qty, Available: available}
}

// Release gives qty back. It is not idempotent.
func (l Ledger) Release(ctx context.Context, productID int64, size string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release %d", ErrInvalidAmount, qty)
	}
	size, err := NormalizeSize(size)
	if err != nil {
		return err
	}
	return l.tx.Increment(ctx, Key{productID, size}, qty)
}

func (l Ledger) SetStock(ctx context.Context, productID int64, size string, value int) error {
	if value < 0 {
		return fmt.Errorf("%w: stock %d", ErrInvalidAmount, value)
	}
	size, err := NormalizeSize(size)
	if err != nil {
		return err
	}
	if _, err := l.tx.Product(ctx, productID); err != nil {
		return err
	}
	return l.tx.PutStock(ctx, Key{productID, size}, value)
}

func (l Ledger) StockFor(ctx context.Context, productID int64) (map[string]int, error) {
	if _, err := l.tx.Product(ctx, productID); err != nil {
		return nil, err
	}
	return l.tx.StockLevels(ctx, productID)
}
