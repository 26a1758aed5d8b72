// Package handler exposes the discount views and the order API over plain
// net/http with jx JSON encoding.
package handler

import (
	"net/http"
	"time"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/pkg/httpmiddleware"
)

// Handler serves the read listings and the order endpoints, delegating
// business logic to the injected views and order service.
type Handler struct {
	views        discount.Views
	orderService *order.Service

	// now supplies the query instant for view listings; overridable in tests.
	now func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(views discount.Views, orderService *order.Service) *Handler {
	return &Handler{
		views:        views,
		orderService: orderService,
		now:          time.Now,
	}
}

// Routes registers all API routes on mux. Mutating order routes are guarded
// by the given auth middleware.
func (h *Handler) Routes(mux *http.ServeMux, auth httpmiddleware.Middleware) {
	mux.HandleFunc("GET /api/customers", h.ListCustomers)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)

	mux.Handle("POST /api/orders", auth(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("POST /api/orders/{id}/pay", auth(http.HandlerFunc(h.PayOrder)))
	mux.Handle("POST /api/orders/{id}/reprice", auth(http.HandlerFunc(h.RepriceOrder)))
}
