package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/catalog"
	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/order"
)

// --- Mock implementations ---

type mockViews struct {
	customers []discount.CustomerView
	products  []discount.ProductView
	err       error

	lastNow  time.Time
	lastOpts discount.ListOptions
}

func (m *mockViews) ListCustomers(_ context.Context, now time.Time, opts discount.ListOptions) ([]discount.CustomerView, error) {
	m.lastNow = now
	m.lastOpts = opts
	return m.customers, m.err
}

func (m *mockViews) ListProducts(_ context.Context, now time.Time, opts discount.ListOptions) ([]discount.ProductView, error) {
	m.lastNow = now
	m.lastOpts = opts
	return m.products, m.err
}

type mockCustomerRepo struct {
	byID map[string]*catalog.Customer
}

func (m *mockCustomerRepo) Create(_ context.Context, _ *catalog.Customer) error { return nil }

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*catalog.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) Delete(_ context.Context, _ string) error { return nil }

type mockProductRepo struct {
	byID map[string]*catalog.Product
}

func (m *mockProductRepo) Create(_ context.Context, _ *catalog.Product) error { return nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Delete(_ context.Context, _ string) error { return nil }

type mockResolver struct {
	customerDiscount int
	productDiscounts map[string]discount.ProductDiscounts
}

func (m *mockResolver) CustomerDiscount(_ context.Context, _ string, _ time.Time) (int, error) {
	return m.customerDiscount, nil
}

func (m *mockResolver) ProductDiscounts(_ context.Context, id string, _ time.Time) (discount.ProductDiscounts, error) {
	return m.productDiscounts[id], nil
}

type mockOrderRepo struct {
	byID map[string]*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.byID == nil {
		m.byID = make(map[string]*order.Order)
	}
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) SetPaid(_ context.Context, id string, paid bool) error {
	o, ok := m.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Paid = paid
	return nil
}

func (m *mockOrderRepo) UpdatePricing(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestHandler(views *mockViews, orders *mockOrderRepo) *Handler {
	customers := &mockCustomerRepo{byID: map[string]*catalog.Customer{
		"cust1": {ID: "cust1", Name: "Alice"},
	}}
	products := &mockProductRepo{byID: map[string]*catalog.Product{
		"p1": {ID: "p1", Name: "Widget", Price: decimal.RequireFromString("50.00"), BrandID: "b1", CategoryID: "c1"},
	}}
	resolver := &mockResolver{
		customerDiscount: 10,
		productDiscounts: map[string]discount.ProductDiscounts{
			"p1": {Brand: 20},
		},
	}

	svc := order.NewService(customers, products, resolver, orders)
	h := NewHandler(views, svc)
	h.now = func() time.Time { return testNow }
	return h
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	// Auth is exercised separately; pass requests through here.
	h.Routes(mux, func(next http.Handler) http.Handler { return next })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decodeJSONField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var value string
	d := jx.DecodeBytes(body)
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		if key == field {
			v, err := d.Str()
			value = v
			return err
		}
		return d.Skip()
	}))
	return value
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	buf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, buf
}

// --- Tests ---

func TestListCustomers(t *testing.T) {
	views := &mockViews{customers: []discount.CustomerView{
		{ID: "cust1", Name: "Alice", MaxDiscount: 25},
		{ID: "cust2", Name: "Bob", MaxDiscount: 0},
	}}
	srv := newTestServer(t, newTestHandler(views, &mockOrderRepo{}))

	resp, body := doRequest(t, srv, http.MethodGet, "/api/customers", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"maxDiscount":25`)
	assert.Contains(t, string(body), `"name":"Bob"`)
	assert.Equal(t, testNow, views.lastNow, "listing resolves at the request instant")
}

func TestListCustomers_SortAndFilterParams(t *testing.T) {
	views := &mockViews{}
	srv := newTestServer(t, newTestHandler(views, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/customers?sort=-max_discount&min_discount=5&max_discount=50", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, discount.SortByMaxDiscount, views.lastOpts.SortBy)
	assert.True(t, views.lastOpts.SortDesc)
	require.NotNil(t, views.lastOpts.MinDiscount)
	assert.Equal(t, 5, *views.lastOpts.MinDiscount)
	require.NotNil(t, views.lastOpts.MaxDiscount)
	assert.Equal(t, 50, *views.lastOpts.MaxDiscount)
}

func TestListCustomers_BadSortKey(t *testing.T) {
	views := &mockViews{err: errors.Wrap(discount.ErrBadSortKey, "customers view")}
	srv := newTestServer(t, newTestHandler(views, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/customers?sort=password", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListCustomers_BadFilterValue(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/customers?min_discount=abc", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListProducts(t *testing.T) {
	views := &mockViews{products: []discount.ProductView{
		{
			ID:               "p1",
			Name:             "Widget",
			Price:            decimal.RequireFromString("100.00"),
			Brand:            "Acme",
			Category:         "Snacks",
			BrandDiscount:    10,
			CategoryDiscount: 30,
			MaxDiscount:      30,
			DiscountPrice:    decimal.RequireFromString("70.00"),
		},
	}}
	srv := newTestServer(t, newTestHandler(views, &mockOrderRepo{}))

	resp, body := doRequest(t, srv, http.MethodGet, "/api/products?min_price=1.50&sort=discount_price", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"discountPrice":"70.00"`)
	assert.Contains(t, string(body), `"maxDiscount":30`)
	assert.Equal(t, discount.SortByDiscountPrice, views.lastOpts.SortBy)
	require.NotNil(t, views.lastOpts.MinPrice)
	assert.Equal(t, "1.50", views.lastOpts.MinPrice.StringFixed(2))
}

func TestPlaceOrder(t *testing.T) {
	orders := &mockOrderRepo{}
	srv := newTestServer(t, newTestHandler(&mockViews{}, orders))

	resp, body := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"cust1","items":[{"productId":"p1","quantity":3}]}`)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	// 50.00 * 3 at 20% item discount = 120.00, then 10% order discount = 108.00.
	assert.Equal(t, "108.00", decodeJSONField(t, body, "totalCost"))
	require.Len(t, orders.byID, 1)
}

func TestPlaceOrder_UnknownCustomer(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"ghost","items":[{"productId":"p1","quantity":1}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"cust1","items":[{"productId":"missing","quantity":1}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/orders", `{"customerId":"cust1","items":[]}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/orders", `{"customerId":`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrder(t *testing.T) {
	orders := &mockOrderRepo{}
	srv := newTestServer(t, newTestHandler(&mockViews{}, orders))

	_, body := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"cust1","items":[{"productId":"p1","quantity":1}]}`)
	id := decodeJSONField(t, body, "id")
	require.NotEmpty(t, id)

	resp, body := doRequest(t, srv, http.MethodGet, "/api/orders/"+id, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, decodeJSONField(t, body, "id"))
}

func TestGetOrder_NotFound(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/orders/missing", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPayOrder(t *testing.T) {
	orders := &mockOrderRepo{}
	srv := newTestServer(t, newTestHandler(&mockViews{}, orders))

	_, body := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"cust1","items":[{"productId":"p1","quantity":1}]}`)
	id := decodeJSONField(t, body, "id")

	resp, body := doRequest(t, srv, http.MethodPost, "/api/orders/"+id+"/pay", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"paid":true`)
	assert.True(t, orders.byID[id].Paid)
}

func TestPayOrder_ExplicitUnpay(t *testing.T) {
	orders := &mockOrderRepo{}
	srv := newTestServer(t, newTestHandler(&mockViews{}, orders))

	_, body := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"cust1","items":[{"productId":"p1","quantity":1}]}`)
	id := decodeJSONField(t, body, "id")

	_, _ = doRequest(t, srv, http.MethodPost, "/api/orders/"+id+"/pay", "")
	resp, respBody := doRequest(t, srv, http.MethodPost, "/api/orders/"+id+"/pay", `{"paid":false}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(respBody), `"paid":false`)
	assert.False(t, orders.byID[id].Paid)
}

func TestRepriceOrder(t *testing.T) {
	orders := &mockOrderRepo{}
	srv := newTestServer(t, newTestHandler(&mockViews{}, orders))

	_, body := doRequest(t, srv, http.MethodPost, "/api/orders",
		`{"customerId":"cust1","items":[{"productId":"p1","quantity":3}]}`)
	id := decodeJSONField(t, body, "id")

	resp, respBody := doRequest(t, srv, http.MethodPost, "/api/orders/"+id+"/reprice", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	// Rules behind the mock resolver are unchanged, so repricing lands on
	// the same values.
	assert.Equal(t, "108.00", decodeJSONField(t, respBody, "totalCost"))
}

func TestRepriceOrder_NotFound(t *testing.T) {
	srv := newTestServer(t, newTestHandler(&mockViews{}, &mockOrderRepo{}))

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/orders/missing/reprice", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
