package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ProductDiscounts holds the independently resolved per-axis maxima for one
// product at one instant.
type ProductDiscounts struct {
	Product  int
	Brand    int
	Category int
}

// Max combines the three axes under the max-wins policy: the single largest
// discount applies, axes never stack.
func (d ProductDiscounts) Max() int {
	m := d.Product
	if d.Brand > m {
		m = d.Brand
	}
	if d.Category > m {
		m = d.Category
	}
	return m
}

// maxActive returns the largest percent among rules whose window contains
// now, or 0 when none is active. Ties resolve by value, so equal rules are
// interchangeable and never an error.
func maxActive(rules []Rule, now time.Time) int {
	best := 0
	for _, r := range rules {
		if r.Window.Contains(now) && r.Percent > best {
			best = r.Percent
		}
	}
	return best
}

// ResolveCustomer returns the maximal discount among the customer's rules
// active at now, or 0 when no rule applies.
func ResolveCustomer(rules []CustomerRule, now time.Time) int {
	best := 0
	for _, r := range rules {
		if r.Window.Contains(now) && r.Percent > best {
			best = r.Percent
		}
	}
	return best
}

// ResolveProduct computes the per-axis maxima for a product at now. Each axis
// is resolved independently; combine with Max.
func ResolveProduct(rules AxisRules, now time.Time) ProductDiscounts {
	return ProductDiscounts{
		Product:  maxActive(rules.Product, now),
		Brand:    maxActive(rules.Brand, now),
		Category: maxActive(rules.Category, now),
	}
}

// Resolver computes currently applicable discounts for a scope at a given
// instant. Now is always passed explicitly so callers control the clock.
type Resolver interface {
	CustomerDiscount(ctx context.Context, customerID string, now time.Time) (int, error)
	ProductDiscounts(ctx context.Context, productID string, now time.Time) (ProductDiscounts, error)
}

var _ Resolver = (*RuleResolver)(nil)

// RuleResolver resolves discounts by fetching denormalized rule rows from a
// RuleStore and running the in-memory resolution pass over them.
type RuleResolver struct {
	store RuleStore
}

// NewRuleResolver creates a RuleResolver backed by the given store.
func NewRuleResolver(store RuleStore) *RuleResolver {
	return &RuleResolver{store: store}
}

// CustomerDiscount returns the customer's maximal active discount at now.
func (r *RuleResolver) CustomerDiscount(ctx context.Context, customerID string, now time.Time) (int, error) {
	rules, err := r.store.CustomerRules(ctx, customerID)
	if err != nil {
		return 0, errors.Wrap(err, "customer rules")
	}
	return ResolveCustomer(rules, now), nil
}

// ProductDiscounts returns the product's per-axis maxima at now.
func (r *RuleResolver) ProductDiscounts(ctx context.Context, productID string, now time.Time) (ProductDiscounts, error) {
	rules, err := r.store.ProductRules(ctx, productID)
	if err != nil {
		return ProductDiscounts{}, errors.Wrap(err, "product rules")
	}
	return ResolveProduct(rules, now), nil
}
