package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/events"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
)

// StockCache is told which products changed after a commit.
type StockCache interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

type Service struct {
	Store       Store
	Events      events.Publisher // optional
	Stock       StockCache       // optional
	ServiceName string
	Log         *slog.Logger
	Now         func() time.Time
}

// Checkout turns a cart into a Pending order. Either every line is reserved
// and the order exists, or nothing changed.
func (s *Service) Checkout(ctx context.Context, who auth.Requester, req CheckoutRequest) (CheckoutResult, error) {
	if err := auth.RequireAuthenticated(who); err != nil {
		return CheckoutResult{}, err
	}
	lines, err := normalize(req.Items)
	if err != nil {
		return CheckoutResult{}, err
	}

	var res CheckoutResult
	err = s.Store.WithinTx(ctx, func(tx Tx) error {
		if req.Key != "" {
			prev, found, err := tx.OrderByCheckoutKey(ctx, who.UserID, req.Key)
			if err != nil {
				return err
			}
			if found {
				res = CheckoutResult{Order: prev, Replayed: true}
				return nil
			}
		}

		products, err := ResolveProducts(ctx, tx, lines)
		if err != nil {
			return err
		}

		// A failed reservation aborts the transaction, which gives back
		// every reservation made before it.
		ledger := inventory.NewLedger(tx)
		for _, ln := range lines {
			if err := ledger.Reserve(ctx, ln.ProductID, ln.Size, ln.Quantity); err != nil {
				return err
			}
		}

		o, err := Create(ctx, tx, who.UserID, req.Key, lines, products, s.now())
		if err != nil {
			return err
		}
		res = CheckoutResult{Order: *o}
		return nil
	})
	if err != nil {
		s.log().Info("checkout rejected", "user_id", who.UserID, "lines", len(lines), "err", err)
		return CheckoutResult{}, err
	}
	if res.Replayed {
		s.log().Info("checkout replayed", "user_id", who.UserID, "order_id", res.Order.ID)
		return res, nil
	}

	s.log().Info("order placed", "order_id", res.Order.ID, "user_id", who.UserID,
		"total", res.Order.TotalAmount.StringFixed(2), "lines", len(res.Order.Items))
	s.invalidate(ctx, res.Order)
	s.publish(ctx, events.TopicOrderPlaced, events.EventOrderPlaced, res.Order.ID, events.OrderPlacedPayload{
		OrderID:     res.Order.ID,
		UserID:      res.Order.UserID,
		Items:       lineEvents(res.Order.Items),
		TotalAmount: res.Order.TotalAmount,
		Status:      string(res.Order.Status),
	})
	return res, nil
}

// Cancel reverses a Pending order for its owner or an admin: stock comes
// back and the order becomes Cancelled in the same transaction.
func (s *Service) Cancel(ctx context.Context, who auth.Requester, orderID int64) (Order, error) {
	var o Order
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := Authorize(o, who); err != nil {
			return err
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return &TransitionError{From: o.Status, To: StatusCancelled}
		}

		ledger := inventory.NewLedger(tx)
		for _, it := range o.Items {
			if err := ledger.Release(ctx, it.ProductID, it.Size, it.Quantity); err != nil {
				return err
			}
		}
		if err := Transition(&o, StatusCancelled); err != nil {
			return err
		}
		return tx.SetOrderStatus(ctx, o.ID, o.Status)
	})
	if err != nil {
		s.log().Info("cancel rejected", "order_id", orderID, "user_id", who.UserID, "err", err)
		return Order{}, err
	}

	s.log().Info("order cancelled", "order_id", o.ID, "by", who.UserID, "role", who.Role)
	s.invalidate(ctx, o)
	s.publishStatus(ctx, events.TopicOrderCancelled, events.EventOrderCancelled, o, who, true)
	return o, nil
}

func (s *Service) MarkDelivered(ctx context.Context, who auth.Requester, orderID int64) (Order, error) {
	if err := auth.RequireAdmin(who); err != nil {
		return Order{}, err
	}
	var o Order
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := Transition(&o, StatusDelivered); err != nil {
			return err
		}
		return tx.SetOrderStatus(ctx, o.ID, o.Status)
	})
	if err != nil {
		return Order{}, err
	}

	s.log().Info("order delivered", "order_id", o.ID, "admin_id", who.UserID)
	s.publishStatus(ctx, events.TopicOrderDelivered, events.EventOrderDelivered, o, who, false)
	return o, nil
}

// Get returns one order with its items, if who may see it.
func (s *Service) Get(ctx context.Context, who auth.Requester, orderID int64) (Order, error) {
	var o Order
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	if err := Authorize(o, who); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListMine returns the requester's orders, newest first.
func (s *Service) ListMine(ctx context.Context, who auth.Requester) ([]Order, error) {
	if err := auth.RequireAuthenticated(who); err != nil {
		return nil, err
	}
	return s.list(ctx, Filter{UserID: who.UserID})
}

func (s *Service) ListAll(ctx context.Context, who auth.Requester) ([]Order, error) {
	if err := auth.RequireAdmin(who); err != nil {
		return nil, err
	}
	return s.list(ctx, Filter{})
}

func (s *Service) list(ctx context.Context, f Filter) ([]Order, error) {
	var out []Order
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, f)
		return err
	})
	return out, err
}

func (s *Service) invalidate(ctx context.Context, o Order) {
	if s.Stock == nil {
		return
	}
	seen := make(map[int64]bool, len(o.Items))
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	s.Stock.Invalidate(ctx, ids...)
}

func (s *Service) publishStatus(ctx context.Context, topic, eventType string, o Order, who auth.Requester, withItems bool) {
	p := events.OrderStatusPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		ActorID:   who.UserID,
		ActorRole: string(who.Role),
	}
	if withItems {
		p.Items = lineEvents(o.Items)
	}
	s.publish(ctx, topic, eventType, o.ID, p)
}

// publish runs after commit; a broker failure is logged and never undoes
// the order.
func (s *Service) publish(ctx context.Context, topic, eventType string, orderID int64, payload any) {
	if s.Events == nil {
		return
	}
	env, err := events.New(eventType, s.ServiceName, events.TraceID(ctx), orderID, payload)
	if err == nil {
		err = s.Events.Publish(ctx, topic, events.Key(orderID), env)
	}
	if err != nil {
		s.log().Warn("publish event", "event", eventType, "order_id", orderID, "err", err)
	}
}

func lineEvents(items []Item) []events.Line {
	out := make([]events.Line, 0, len(items))
	for _, it := range items {
		out = append(out, events.Line{ProductID: it.ProductID, Size: it.Size, Qty: it.Quantity, Price: it.Price})
	}
	return out
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
