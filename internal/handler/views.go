package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

// listOptionsFromQuery parses sorting and range filters from query
// parameters. The sort value may carry a "-" prefix for descending order;
// the key itself is validated downstream against the view's whitelist.
func listOptionsFromQuery(q url.Values) (discount.ListOptions, error) {
	var opts discount.ListOptions

	if sort := q.Get("sort"); sort != "" {
		if strings.HasPrefix(sort, "-") {
			opts.SortDesc = true
			sort = sort[1:]
		}
		opts.SortBy = discount.SortKey(sort)
	}

	for param, dst := range map[string]**int{
		"min_discount": &opts.MinDiscount,
		"max_discount": &opts.MaxDiscount,
	} {
		if raw := q.Get(param); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return opts, &paramError{param: param, value: raw}
			}
			*dst = &v
		}
	}

	for param, dst := range map[string]**decimal.Decimal{
		"min_price": &opts.MinPrice,
		"max_price": &opts.MaxPrice,
	} {
		if raw := q.Get(param); raw != "" {
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return opts, &paramError{param: param, value: raw}
			}
			*dst = &v
		}
	}

	return opts, nil
}

// paramError reports an unparsable query parameter.
type paramError struct {
	param string
	value string
}

func (e *paramError) Error() string {
	return "invalid value " + strconv.Quote(e.value) + " for parameter " + e.param
}

// ListCustomers returns every customer with the discount resolved at the
// time of the request.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, err := h.views.ListCustomers(r.Context(), h.now(), opts)
	if err != nil {
		if errors.Is(err, discount.ErrBadSortKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for _, v := range views {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(v.ID)
		e.FieldStart("name")
		e.Str(v.Name)
		e.FieldStart("maxDiscount")
		e.Int(v.MaxDiscount)
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e)
}

// ListProducts returns every product with per-axis discounts and the
// discounted price resolved at the time of the request.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, err := h.views.ListProducts(r.Context(), h.now(), opts)
	if err != nil {
		if errors.Is(err, discount.ErrBadSortKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for _, v := range views {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(v.ID)
		e.FieldStart("name")
		e.Str(v.Name)
		e.FieldStart("price")
		e.Str(v.Price.StringFixed(2))
		e.FieldStart("brand")
		e.Str(v.Brand)
		e.FieldStart("category")
		e.Str(v.Category)
		e.FieldStart("productDiscount")
		e.Int(v.ProductDiscount)
		e.FieldStart("brandDiscount")
		e.Int(v.BrandDiscount)
		e.FieldStart("categoryDiscount")
		e.Int(v.CategoryDiscount)
		e.FieldStart("maxDiscount")
		e.Int(v.MaxDiscount)
		e.FieldStart("discountPrice")
		e.Str(v.DiscountPrice.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e)
}
