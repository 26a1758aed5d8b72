package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrPercentRange is returned when a discount percentage lies outside [0, 100].
type ErrPercentRange struct {
	Percent int
}

func (e *ErrPercentRange) Error() string {
	return errors.Errorf("discount %d outside [0, 100]", e.Percent).Error()
}

// ValidatePercent checks that a discount percentage lies in [0, 100].
func ValidatePercent(percent int) error {
	if percent < 0 || percent > 100 {
		return &ErrPercentRange{Percent: percent}
	}
	return nil
}

// Window is a rule validity interval. Both bounds are inclusive: a rule with
// From == To is active for exactly that instant.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether now falls inside the window.
func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.From) && !now.After(w.To)
}

// Rule is a single discount rule row: a percentage bounded by the validity
// window of the row itself (customer rules) or of the owning campaign
// (product/brand/category items).
type Rule struct {
	Window  Window
	Percent int
}

// CustomerRule is a personal discount attached directly to one customer.
type CustomerRule struct {
	ID         string
	CustomerID string
	Window     Window
	Percent    int
}

// Campaign is a time-bounded container grouping per-axis discount items.
// Items are owned by the campaign and share its validity window.
type Campaign struct {
	ID     string
	Name   string
	Window Window
}

// CampaignItem scopes a campaign discount to one product, brand, or category.
type CampaignItem struct {
	ID         string
	CampaignID string
	ScopeID    string
	Percent    int
}

// AxisRules holds, for one product, the denormalized discount rules of every
// axis that can affect it. Each rule carries its owning campaign's window.
type AxisRules struct {
	Product  []Rule
	Brand    []Rule
	Category []Rule
}

// RuleStore provides read access to the current rule set.
type RuleStore interface {
	// CustomerRules returns every discount rule attached to the customer,
	// active or not.
	CustomerRules(ctx context.Context, customerID string) ([]CustomerRule, error)
	// ProductRules returns the product's per-axis campaign rules, each
	// denormalized with its campaign window, active or not.
	ProductRules(ctx context.Context, productID string) (AxisRules, error)
}
