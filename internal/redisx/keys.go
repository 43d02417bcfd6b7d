package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{user_id}:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Order status cache: order_status:{order_id} -> {"order_id":..,"status":..,"updated_at":..}
	KeyOrderStatus = "order_status:%d"

	// Per-size stock cache: hash stock:{product_id} size_label -> stock
	KeyStock = "stock:%d"

	// Stock cache version, bumped on every invalidation: stock_ver:{product_id}
	KeyStockVersion = "stock_ver:%d"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Session: session:{token} -> requester JSON
	KeySession = "session:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLStockCache  = 30 * time.Second
	TTLStockVer    = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLSession     = 12 * time.Hour
)
