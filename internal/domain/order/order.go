package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a customer order. Discount is frozen from the customer's resolved
// discount at creation time and is never recomputed on reads.
type Order struct {
	ID         string
	CustomerID string
	Created    time.Time
	Updated    time.Time
	Paid       bool
	Discount   int
	Items      []Item
}

// Item is a single order line. Price and Discount are frozen from the
// product's base price and resolved max-wins discount at creation time.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Price     decimal.Decimal
	Quantity  int
	Discount  int
}

// Cost returns price*quantity net of the item's frozen discount.
func (i Item) Cost() decimal.Decimal {
	return discount.LineCost(i.Price, i.Quantity, i.Discount)
}

// TotalCost returns the sum of item costs net of the order's own frozen
// customer-level discount. Always derived, never stored.
func (o *Order) TotalCost() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Cost())
	}
	return discount.DiscountedPrice(sum, o.Discount)
}

// Repository defines persistence operations for orders. Create persists the
// order and its items atomically.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	SetPaid(ctx context.Context, id string, paid bool) error
	// UpdatePricing overwrites the frozen discount of the order and the
	// frozen price/discount of every item, atomically.
	UpdatePricing(ctx context.Context, o *Order) error
}
