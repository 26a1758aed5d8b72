package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrBadSortKey is returned when a listing is asked to sort by a column the
// view does not expose.
var ErrBadSortKey = errors.New("unsupported sort key")

// CustomerView is the per-customer read model with the resolved maximal
// discount at the query instant.
type CustomerView struct {
	ID          string
	Name        string
	MaxDiscount int
}

// ProductView is the per-product read model with resolved per-axis discounts,
// the max-wins combination, and the discounted price at the query instant.
type ProductView struct {
	ID               string
	Name             string
	Price            decimal.Decimal
	Brand            string
	Category         string
	ProductDiscount  int
	BrandDiscount    int
	CategoryDiscount int
	MaxDiscount      int
	DiscountPrice    decimal.Decimal
}

// SortKey selects the column a view listing is ordered by. Computed columns
// sort exactly like stored ones.
type SortKey string

const (
	SortByName          SortKey = "name"
	SortByPrice         SortKey = "price"
	SortByMaxDiscount   SortKey = "max_discount"
	SortByDiscountPrice SortKey = "discount_price"
)

// ListOptions controls sorting and range filtering of view listings.
// Nil filter bounds mean unbounded.
type ListOptions struct {
	SortBy   SortKey
	SortDesc bool

	// MinDiscount/MaxDiscount filter on the computed max_discount column.
	MinDiscount *int
	MaxDiscount *int

	// MinPrice/MaxPrice filter on the computed discount_price column for
	// products; ignored for customers.
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// Views exposes the resolved discount read models. All computed fields are
// evaluated against the rule set active at the provided instant.
type Views interface {
	ListCustomers(ctx context.Context, now time.Time, opts ListOptions) ([]CustomerView, error)
	ListProducts(ctx context.Context, now time.Time, opts ListOptions) ([]ProductView, error)
}
