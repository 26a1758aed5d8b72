package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	activeWindow  = Window{From: fixedNow.Add(-24 * time.Hour), To: fixedNow.Add(24 * time.Hour)}
	expiredWindow = Window{From: fixedNow.Add(-48 * time.Hour), To: fixedNow.Add(-24 * time.Hour)}
	futureWindow  = Window{From: fixedNow.Add(24 * time.Hour), To: fixedNow.Add(48 * time.Hour)}
)

func TestResolveCustomer(t *testing.T) {
	tests := []struct {
		name  string
		rules []CustomerRule
		want  int
	}{
		{
			name: "no rules",
			want: 0,
		},
		{
			name: "largest active rule wins",
			rules: []CustomerRule{
				{Window: activeWindow, Percent: 15},
				{Window: activeWindow, Percent: 25},
			},
			want: 25,
		},
		{
			name: "inactive rules are ignored",
			rules: []CustomerRule{
				{Window: expiredWindow, Percent: 90},
				{Window: futureWindow, Percent: 80},
				{Window: activeWindow, Percent: 10},
			},
			want: 10,
		},
		{
			name: "only inactive rules resolve to zero",
			rules: []CustomerRule{
				{Window: expiredWindow, Percent: 50},
			},
			want: 0,
		},
		{
			name: "equal rules tie by value",
			rules: []CustomerRule{
				{Window: activeWindow, Percent: 20},
				{Window: activeWindow, Percent: 20},
			},
			want: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCustomer(tt.rules, fixedNow))
		})
	}
}

func TestResolveProduct(t *testing.T) {
	rules := AxisRules{
		Product: []Rule{
			{Window: expiredWindow, Percent: 70},
			{Window: activeWindow, Percent: 5},
		},
		Brand: []Rule{
			{Window: activeWindow, Percent: 10},
		},
		Category: []Rule{
			{Window: activeWindow, Percent: 30},
			{Window: futureWindow, Percent: 99},
		},
	}

	got := ResolveProduct(rules, fixedNow)

	assert.Equal(t, 5, got.Product)
	assert.Equal(t, 10, got.Brand)
	assert.Equal(t, 30, got.Category)
	assert.Equal(t, 30, got.Max())
}

func TestProductDiscountsMax(t *testing.T) {
	tests := []struct {
		name string
		d    ProductDiscounts
		want int
	}{
		{name: "all zero", d: ProductDiscounts{}, want: 0},
		{name: "product wins", d: ProductDiscounts{Product: 40, Brand: 10, Category: 30}, want: 40},
		{name: "brand wins", d: ProductDiscounts{Product: 5, Brand: 50, Category: 30}, want: 50},
		{name: "category wins", d: ProductDiscounts{Product: 5, Brand: 10, Category: 60}, want: 60},
		{name: "axes never stack", d: ProductDiscounts{Product: 30, Brand: 30, Category: 30}, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Max())
		})
	}
}

type mockRuleStore struct {
	customerRules []CustomerRule
	productRules  AxisRules
	err           error
}

func (m *mockRuleStore) CustomerRules(_ context.Context, _ string) ([]CustomerRule, error) {
	return m.customerRules, m.err
}

func (m *mockRuleStore) ProductRules(_ context.Context, _ string) (AxisRules, error) {
	return m.productRules, m.err
}

func TestRuleResolver_CustomerDiscount(t *testing.T) {
	r := NewRuleResolver(&mockRuleStore{
		customerRules: []CustomerRule{
			{Window: activeWindow, Percent: 15},
			{Window: activeWindow, Percent: 25},
			{Window: futureWindow, Percent: 99},
		},
	})

	got, err := r.CustomerDiscount(context.Background(), "c1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 25, got)
}

func TestRuleResolver_ProductDiscounts(t *testing.T) {
	r := NewRuleResolver(&mockRuleStore{
		productRules: AxisRules{
			Brand:    []Rule{{Window: activeWindow, Percent: 10}},
			Category: []Rule{{Window: activeWindow, Percent: 30}},
		},
	})

	got, err := r.ProductDiscounts(context.Background(), "p1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, ProductDiscounts{Brand: 10, Category: 30}, got)
	assert.Equal(t, 30, got.Max())
}

func TestRuleResolver_StoreError(t *testing.T) {
	r := NewRuleResolver(&mockRuleStore{err: errors.New("db down")})

	_, err := r.CustomerDiscount(context.Background(), "c1", fixedNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer rules")

	_, err = r.ProductDiscounts(context.Background(), "p1", fixedNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product rules")
}
