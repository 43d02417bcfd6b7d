package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	OrderDate   time.Time       `json:"order_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	CheckoutKey string          `json:"-"`
	Items       []Item          `json:"items,omitempty"`
}

// Item is one order line. Price is the product price at checkout time.
type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Size      string          `json:"size_label"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Line is a requested cart line.
type Line struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size_label"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequest struct {
	Key   string // optional idempotency key, scoped to the requester
	Items []Line
}

type CheckoutResult struct {
	Order    Order
	Replayed bool // the key matched an order placed earlier
}
