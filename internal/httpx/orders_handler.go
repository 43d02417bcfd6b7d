package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/projector"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const maxIdempotencyKey = 128

type OrdersHandler struct {
	Orders *orders.Service
	Redis  *redis.Client // optional: idempotency fast path and status cache
	Log    *slog.Logger
}

type checkoutReq struct {
	Items []orders.Line `json:"items"`
}

type checkoutResp struct {
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      orders.Status   `json:"status"`
	Replayed    bool            `json:"replayed,omitempty"`
}

type orderIDReq struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type statusResp struct {
	OrderID int64         `json:"order_id"`
	Status  orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Post("/cancel", h.cancel)
	r.Get("/orders", h.listMine)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/admin/deliver", h.deliver)
	r.Get("/admin/orders", h.listAll)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if !bind(w, r, &req) {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKey {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Idempotency-Key too long", Code: "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	who := requester(r)

	// Fast path; the store's unique key stays the source of truth.
	if o, ok := h.replay(ctx, who, key); ok {
		writeJSON(w, http.StatusOK, checkoutResp{OrderID: o.ID, TotalAmount: o.TotalAmount, Status: o.Status, Replayed: true})
		return
	}

	res, err := h.Orders.Checkout(ctx, who, orders.CheckoutRequest{Key: key, Items: req.Items})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if key != "" && h.Redis != nil {
		idem := fmt.Sprintf(redisx.KeyIdemCheckout, who.UserID, key)
		if err := h.Redis.Set(ctx, idem, res.Order.ID, redisx.TTLIdempotency).Err(); err != nil {
			h.log().Warn("store idempotency key", "user_id", who.UserID, "err", err)
		}
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, checkoutResp{
		OrderID:     res.Order.ID,
		TotalAmount: res.Order.TotalAmount,
		Status:      res.Order.Status,
		Replayed:    res.Replayed,
	})
}

func (h *OrdersHandler) replay(ctx context.Context, who auth.Requester, key string) (orders.Order, bool) {
	if key == "" || h.Redis == nil || !who.Authenticated() {
		return orders.Order{}, false
	}
	v, err := h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, who.UserID, key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.log().Warn("read idempotency key", "user_id", who.UserID, "err", err)
		}
		return orders.Order{}, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return orders.Order{}, false
	}
	o, err := h.Orders.Get(ctx, who, id)
	if err != nil {
		return orders.Order{}, false
	}
	return o, true
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req orderIDReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Cancel(ctx, requester(r), req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.storeStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status})
}

func (h *OrdersHandler) deliver(w http.ResponseWriter, r *http.Request) {
	var req orderIDReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.MarkDelivered(ctx, requester(r), req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.storeStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, requester(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus answers from the projector's cache when it holds the order and
// the caller may see it, and from the store otherwise.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	who := requester(r)

	if h.Redis != nil && who.Authenticated() {
		st, found, err := projector.StatusCache{Redis: h.Redis}.Get(ctx, id)
		if err != nil {
			h.log().Warn("read status cache", "order_id", id, "err", err)
		}
		if found && (who.IsAdmin() || st.UserID == who.UserID) {
			writeJSON(w, http.StatusOK, statusResp{OrderID: st.OrderID, Status: orders.Status(st.Status)})
			return
		}
	}

	o, err := h.Orders.Get(ctx, who, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status})
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Orders.ListMine(ctx, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Orders.ListAll(ctx, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// storeStatus writes a committed status change into the status cache. A
// terminal entry there keeps a late OrderPlaced event from reverting it.
func (h *OrdersHandler) storeStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	st := projector.OrderStatus{OrderID: o.ID, UserID: o.UserID, Status: string(o.Status), UpdatedAt: time.Now().UTC()}
	if err := (projector.StatusCache{Redis: h.Redis}).Put(ctx, st); err != nil {
		h.log().Warn("store status cache", "order_id", o.ID, "err", err)
	}
}

func (h *OrdersHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
