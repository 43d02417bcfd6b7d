package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/logx"
	"github.com/ariefcatur/go-clothing-orders/internal/memstore"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/projector"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/ariefcatur/go-clothing-orders/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv      http.Handler
	store    *memstore.Store
	rdb      *redis.Client
	mr       *miniredis.Miniredis
	logs     *bytes.Buffer
	admin    string
	customer string
	other    string
	product  int64
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := memstore.New()
	logs := &bytes.Buffer{}
	log := logx.NewWithWriter(logs, "info", "json")
	cat := &catalog.Service{Store: st, Log: log}
	inv := &inventory.Service{Store: st, Redis: rdb, Log: log}
	ord := &orders.Service{Store: st, Stock: inv, Log: log}
	sessions := &auth.Sessions{Redis: rdb}

	env := &testEnv{store: st, rdb: rdb, mr: mr, logs: logs}
	env.srv = NewRouter(log, sessions,
		&OrdersHandler{Orders: ord, Redis: rdb, Log: log},
		&CatalogHandler{Catalog: cat, Inventory: inv},
	)

	var err error
	env.admin, err = sessions.Issue(ctx, auth.Requester{UserID: 1, Role: auth.RoleAdmin})
	require.NoError(t, err)
	env.customer, err = sessions.Issue(ctx, auth.Requester{UserID: 2, Role: auth.RoleCustomer})
	require.NoError(t, err)
	env.other, err = sessions.Issue(ctx, auth.Requester{UserID: 3, Role: auth.RoleCustomer})
	require.NoError(t, err)

	p := catalog.Product{Name: "Basic Tee", Price: decimal.RequireFromString("20.00")}
	require.NoError(t, st.CreateProduct(ctx, &p))
	require.NoError(t, st.WithinStockTx(ctx, func(tx inventory.StockTx) error {
		return tx.PutStock(ctx, inventory.Key{ProductID: p.ID, Size: "M"}, 2)
	}))
	env.product = p.ID
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) checkoutBody(qty int) map[string]any {
	return map[string]any{"items": []map[string]any{{"product_id": e.product, "size_label": "M", "quantity": qty}}}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCheckoutFlow(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[checkoutResp](t, rec)
	assert.Equal(t, "40.00", res.TotalAmount.StringFixed(2))
	assert.Equal(t, orders.StatusPending, res.Status)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/products/%d/stock", e.product), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[stockResp](t, rec).Sizes["M"])

	rec = e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(2))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "insufficient_stock", body.Code)
	assert.Contains(t, body.Error, "size M")
}

func TestCheckoutErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/checkout", "", e.checkoutBody(1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/checkout", "not-a-session", e.checkoutBody(1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/checkout", e.customer, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decode[errorBody](t, rec).Code)

	rec = e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/checkout", e.customer, map[string]any{
		"items": []map[string]any{{"product_id": 999, "size_label": "M", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/checkout", e.customer, map[string]any{"total_amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	e := newEnv(t)

	first := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(1), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	again := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(1), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, again.Code)

	a, b := decode[checkoutResp](t, first), decode[checkoutResp](t, again)
	assert.Equal(t, a.OrderID, b.OrderID)
	assert.True(t, b.Replayed)

	// Without the Redis shortcut the store still recognises the key.
	require.NoError(t, e.rdb.Del(context.Background(), fmt.Sprintf(redisx.KeyIdemCheckout, 2, "abc")).Err())
	third := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(1), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, a.OrderID, decode[checkoutResp](t, third).OrderID)

	rec := e.do(t, http.MethodGet, fmt.Sprintf("/products/%d/stock", e.product), "", nil)
	assert.Equal(t, 1, decode[stockResp](t, rec).Sizes["M"])
}

func TestCancelFlow(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(2))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[checkoutResp](t, rec).OrderID

	rec = e.do(t, http.MethodPost, "/cancel", e.other, orderIDReq{OrderID: id})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/cancel", e.customer, orderIDReq{OrderID: id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusCancelled, decode[statusResp](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/cancel", e.customer, orderIDReq{OrderID: id})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorBody](t, rec).Code)

	rec = e.do(t, http.MethodPost, "/cancel", e.customer, orderIDReq{OrderID: 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/cancel", e.customer, map[string]any{"order_id": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "OrderID")

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/products/%d/stock", e.product), "", nil)
	assert.Equal(t, 2, decode[stockResp](t, rec).Sizes["M"])

	// A late OrderPlaced projection must not revert the cancellation.
	require.NoError(t, projector.StatusCache{Redis: e.rdb}.Put(context.Background(),
		projector.OrderStatus{OrderID: id, UserID: 2, Status: "Pending"}))
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/status", id), e.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusCancelled, decode[statusResp](t, rec).Status)
}

func TestDeliverAndStatus(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[checkoutResp](t, rec).OrderID

	// A stale cached status is replaced on delivery.
	require.NoError(t, projector.StatusCache{Redis: e.rdb}.Put(context.Background(),
		projector.OrderStatus{OrderID: id, UserID: 2, Status: "Pending"}))

	rec = e.do(t, http.MethodPost, "/admin/deliver", e.customer, orderIDReq{OrderID: id})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodPost, "/admin/deliver", e.admin, orderIDReq{OrderID: id})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/status", id), e.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusDelivered, decode[statusResp](t, rec).Status)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/status", id), e.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrderQueries(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[checkoutResp](t, rec).OrderID

	rec = e.do(t, http.MethodGet, "/orders", e.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Order](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/orders", e.other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]orders.Order](t, rec))

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", id), e.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[orders.Order](t, rec)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "M", o.Items[0].Size)

	rec = e.do(t, http.MethodGet, "/orders/abc", e.customer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/admin/orders", e.customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodGet, "/admin/orders", e.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Order](t, rec), 1)
}

func TestCatalogAdmin(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/products", e.customer, createProductReq{Name: "Hat", Price: decimal.NewFromInt(9)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/products", e.admin, createProductReq{Name: "Hat", Price: decimal.NewFromInt(9)})
	require.Equal(t, http.StatusCreated, rec.Code)
	hat := decode[catalog.Product](t, rec)

	rec = e.do(t, http.MethodPost, "/admin/stock", e.admin, map[string]any{"product_id": hat.ID, "size_label": "one", "value": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, "/admin/stock", e.admin, map[string]any{"product_id": hat.ID, "size_label": "one", "value": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/admin/stock", e.admin, map[string]any{"product_id": hat.ID, "size_label": "one"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/admin/stock", e.customer, map[string]any{"product_id": hat.ID, "size_label": "one", "value": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/products", e.admin, map[string]any{"name": "", "price": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode[errorBody](t, rec).Code)
	rec = e.do(t, http.MethodPut, fmt.Sprintf("/admin/products/%d/price", hat.ID), e.admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPut, fmt.Sprintf("/admin/products/%d/price", hat.ID), e.admin, map[string]any{"price": "11.50"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "11.50", decode[catalog.Product](t, rec).Price.StringFixed(2))

	rec = e.do(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]catalog.Summary](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, 4, list[1].TotalStock)

	rec = e.do(t, http.MethodGet, "/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClothTypes(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/cloth-types", e.customer, clothTypeReq{Name: "Tops"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodPost, "/admin/cloth-types", e.admin, clothTypeReq{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/cloth-types", e.admin, clothTypeReq{Name: "Tops", Description: "tees"})
	require.Equal(t, http.StatusCreated, rec.Code)
	tops := decode[catalog.ClothType](t, rec)
	rec = e.do(t, http.MethodPost, "/admin/cloth-types", e.admin, clothTypeReq{Name: "Tops"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cloth_type_exists", decode[errorBody](t, rec).Code)

	rec = e.do(t, http.MethodPost, "/admin/products", e.admin, createProductReq{Name: "Tee", Price: decimal.NewFromInt(5), ClothTypeID: 77})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/admin/products", e.admin, createProductReq{Name: "Tee", Price: decimal.NewFromInt(5), ClothTypeID: tops.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/cloth-types", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.ClothType](t, rec), 1)

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/admin/cloth-types/%d", tops.ID), e.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cloth_type_in_use", decode[errorBody](t, rec).Code)
	rec = e.do(t, http.MethodDelete, "/admin/cloth-types/999", e.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageFailureIs503(t *testing.T) {
	e := newEnv(t)
	e.store.Fail = func(string) error { return errors.New("db gone") }

	rec := e.do(t, http.MethodPost, "/checkout", e.customer, e.checkoutBody(1))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "storage_failure", body.Code)
	assert.NotContains(t, body.Error, "db gone")
	assert.Contains(t, e.logs.String(), "db gone")
}

func TestSessionStoreDownIs503(t *testing.T) {
	e := newEnv(t)
	e.mr.Close()

	rec := e.do(t, http.MethodGet, "/orders", e.customer, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "storage_failure", decode[errorBody](t, rec).Code)
	assert.Contains(t, e.logs.String(), "resolve session")
}

func TestClassify(t *testing.T) {
	code, _ := classify(storage.Wrap("commit", errors.New("x")))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = classify(orders.ErrDuplicateCheckout)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = classify(errors.New("surprise"))
	assert.Equal(t, http.StatusInternalServerError, code)
}
