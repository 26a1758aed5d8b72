package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/promo-engine/internal/domain/catalog"
	"github.com/xenking/promo-engine/internal/domain/discount"
)

// ErrEmptyItems is returned when an order is placed without line items.
var ErrEmptyItems = fmt.Errorf("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a negative quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerID string
	Items      []ItemRequest
}

// ItemRequest is one requested order line. A zero quantity means the default
// of 1.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// Service implements the order freezing logic: every order and line item is
// priced exactly once, at creation, from the rule set active at that instant.
// Later rule or price changes never alter an existing order unless Reprice
// is called explicitly.
type Service struct {
	customers catalog.CustomerRepository
	products  catalog.ProductRepository
	resolver  discount.Resolver
	orders    Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	customers catalog.CustomerRepository,
	products catalog.ProductRepository,
	resolver discount.Resolver,
	orders Repository,
) *Service {
	return &Service{
		customers: customers,
		products:  products,
		resolver:  resolver,
		orders:    orders,
		now:       time.Now,
	}
}

// PlaceOrder validates items, resolves the customer and per-product discounts
// at the current instant, freezes them together with the current base prices
// onto a new order, and persists it.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if item.Quantity == 0 {
			req.Items[i].Quantity = 1
		}
		ids[i] = item.ProductID
	}

	if _, err := s.customers.GetByID(ctx, req.CustomerID); err != nil {
		return nil, fmt.Errorf("get customer %q: %w", req.CustomerID, err)
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// One instant for the whole order: the order-level and every item-level
	// resolution observe the same "now".
	now := s.now()

	customerDiscount, err := s.resolver.CustomerDiscount(ctx, req.CustomerID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve customer discount: %w", err)
	}

	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Created:    now,
		Updated:    now,
		Discount:   customerDiscount,
		Items:      make([]Item, 0, len(req.Items)),
	}

	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}

		resolved, err := s.resolver.ProductDiscounts(ctx, p.ID, now)
		if err != nil {
			return nil, fmt.Errorf("resolve product %q discount: %w", p.ID, err)
		}

		o.Items = append(o.Items, Item{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: p.ID,
			Price:     p.Price,
			Quantity:  item.Quantity,
			Discount:  resolved.Max(),
		})
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

// Get returns an order with its items. Costs derive from the frozen fields,
// never from the live rule set.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// SetPaid toggles the paid flag. It deliberately does not touch the frozen
// discount or prices: editing an old order must not silently re-price it.
func (s *Service) SetPaid(ctx context.Context, id string, paid bool) error {
	if err := s.orders.SetPaid(ctx, id, paid); err != nil {
		return fmt.Errorf("set paid: %w", err)
	}
	return nil
}

// Reprice explicitly re-resolves the order against the rule set and base
// prices current at this instant and overwrites the frozen values. This is
// the only code path that re-freezes an existing order.
func (s *Service) Reprice(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	now := s.now()

	customerDiscount, err := s.resolver.CustomerDiscount(ctx, o.CustomerID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve customer discount: %w", err)
	}
	o.Discount = customerDiscount

	for i := range o.Items {
		p, err := s.products.GetByID(ctx, o.Items[i].ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product %q: %w", o.Items[i].ProductID, err)
		}

		resolved, err := s.resolver.ProductDiscounts(ctx, p.ID, now)
		if err != nil {
			return nil, fmt.Errorf("resolve product %q discount: %w", p.ID, err)
		}

		o.Items[i].Price = p.Price
		o.Items[i].Discount = resolved.Max()
	}

	o.Updated = now

	if err := s.orders.UpdatePricing(ctx, o); err != nil {
		return nil, fmt.Errorf("update pricing: %w", err)
	}

	return o, nil
}
