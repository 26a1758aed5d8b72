package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors shared by all catalog repositories.
var (
	// ErrNotFound is returned when a requested catalog row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProtected is returned when deleting a row that is still referenced
	// by a discount rule, an order, or another catalog row.
	ErrProtected = errors.New("row is referenced and cannot be deleted")
)

// Customer is a buyer that can carry time-windowed personal discounts.
type Customer struct {
	ID   string
	Name string
}

// Brand groups products of one manufacturer.
type Brand struct {
	ID   string
	Name string
}

// Category groups products of one kind.
type Category struct {
	ID   string
	Name string
}

// Product is a catalog item. Price is the base price before any discount.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	BrandID    string
	CategoryID string
}

// CustomerRepository defines persistence operations for customers.
type CustomerRepository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id string) (*Customer, error)
	Delete(ctx context.Context, id string) error
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Delete(ctx context.Context, id string) error
}

// BrandRepository defines persistence operations for brands.
type BrandRepository interface {
	Create(ctx context.Context, b *Brand) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}
