package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/promo-engine/internal/domain/catalog"
	"github.com/xenking/promo-engine/internal/domain/order"
)

// PlaceOrder decodes the request, delegates to the order service (which
// freezes the resolved discounts and prices), and returns the stored order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlaceOrder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orderService.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, encodeOrder(o))
}

// GetOrder returns a stored order. Costs derive from the frozen fields.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrder(o))
}

// PayOrder toggles the paid flag without touching the frozen pricing.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	paid := true
	d, err := decodeBody(r)
	if err == nil {
		// Body is optional; {"paid": false} un-marks the order.
		_ = d.Obj(func(d *jx.Decoder, key string) error {
			if key == "paid" {
				v, err := d.Bool()
				if err != nil {
					return err
				}
				paid = v
				return nil
			}
			return d.Skip()
		})
	}

	if err := h.orderService.SetPaid(r.Context(), id, paid); err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	o, err := h.orderService.Get(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrder(o))
}

// RepriceOrder explicitly re-freezes the order from the current rule set.
func (h *Handler) RepriceOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.Reprice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrder(o))
}

func decodePlaceOrder(r *http.Request) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest

	d, err := decodeBody(r)
	if err != nil {
		return req, err
	}

	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customerId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.CustomerID = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item order.ItemRequest
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "productId":
						v, err := d.Str()
						if err != nil {
							return err
						}
						item.ProductID = v
						return nil
					case "quantity":
						v, err := d.Int()
						if err != nil {
							return err
						}
						item.Quantity = v
						return nil
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}

func encodeOrder(o *order.Order) *jx.Encoder {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customerId")
	e.Str(o.CustomerID)
	e.FieldStart("created")
	e.Str(o.Created.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updated")
	e.Str(o.Updated.UTC().Format(time.RFC3339Nano))
	e.FieldStart("paid")
	e.Bool(o.Paid)
	e.FieldStart("discount")
	e.Int(o.Discount)
	e.FieldStart("totalCost")
	e.Str(o.TotalCost().StringFixed(2))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ID)
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("price")
		e.Str(item.Price.StringFixed(2))
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("discount")
		e.Int(item.Discount)
		e.FieldStart("cost")
		e.Str(item.Cost().StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e
}

// writeOrderError converts domain errors to HTTP error responses.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "customer not found")
	default:
		var iqErr *order.InvalidQuantityError
		if errors.As(err, &iqErr) {
			writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
			return
		}
		var pnfErr *order.ProductNotFoundError
		if errors.As(err, &pnfErr) {
			writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
			return
		}
		writeInternalError(w, r, err)
	}
}
