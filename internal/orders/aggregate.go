package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/shopspring/decimal"
)

// ResolveProducts reads every product the lines name, once each.
func ResolveProducts(ctx context.Context, tx Tx, lines []Line) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(lines))
	for _, ln := range lines {
		if _, ok := out[ln.ProductID]; ok {
			continue
		}
		p, err := tx.Product(ctx, ln.ProductID)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

// Create persists a Pending order for userID. Each item takes the price of
// the resolved product and the total is computed here, never taken from the
// caller. key may be empty.
func Create(ctx context.Context, tx Tx, userID int64, key string, lines []Line, products map[int64]catalog.Product, now time.Time) (*Order, error) {
	o := &Order{
		UserID:      userID,
		CheckoutKey: key,
		OrderDate:   now.UTC(),
		Status:      StatusPending,
		TotalAmount: decimal.Zero,
		Items:       make([]Item, 0, len(lines)),
	}
	for _, ln := range lines {
		p, ok := products[ln.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", catalog.ErrProductNotFound, ln.ProductID)
		}
		it := Item{
			ProductID: ln.ProductID,
			Size:      ln.Size,
			Quantity:  ln.Quantity,
			Price:     p.Price,
		}
		o.Items = append(o.Items, it)
		o.TotalAmount = o.TotalAmount.Add(it.Subtotal())
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func Transition(o *Order, to Status) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: o.Status, To: to}
	}
	o.Status = to
	return nil
}

// Authorize lets customers act on their own orders and admins on any.
func Authorize(o Order, who auth.Requester) error {
	if err := auth.RequireAuthenticated(who); err != nil {
		return err
	}
	if who.IsAdmin() || o.UserID == who.UserID {
		return nil
	}
	return auth.ErrForbidden
}

// normalize validates the cart and canonicalizes size labels.
func normalize(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	out := make([]Line, len(lines))
	for i, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %d for product %d size %q", ErrInvalidQuantity, ln.Quantity, ln.ProductID, ln.Size)
		}
		size, err := inventory.NormalizeSize(ln.Size)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", ln.ProductID, err)
		}
		out[i] = Line{ProductID: ln.ProductID, Size: size, Quantity: ln.Quantity}
	}
	return out, nil
}
