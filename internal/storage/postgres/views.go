package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

var _ discount.Views = (*Views)(nil)

// Views implements the resolved discount read models with SQL aggregation:
// a left join + group-by-max per axis over campaigns active at the query
// instant, combined with GREATEST. Computing the columns inside the query
// makes max_discount and discount_price sortable and filterable exactly
// like stored columns.
type Views struct {
	pool *pgxpool.Pool
}

// NewViews returns Views that use the given pool.
func NewViews(pool *pgxpool.Pool) *Views {
	return &Views{pool: pool}
}

const listCustomersSQL = `
SELECT v.id, v.name, v.max_discount FROM (
	SELECT c.id, c.name, COALESCE(cd.discount, 0) AS max_discount
	FROM customers c
	LEFT JOIN (
		SELECT customer_id, MAX(discount) AS discount
		FROM customer_discounts
		WHERE valid_from <= $1 AND valid_to >= $1
		GROUP BY customer_id
	) cd ON cd.customer_id = c.id
) v`

// ListCustomers returns every customer with the maximal discount active at
// now (0 when no rule applies).
func (v *Views) ListCustomers(ctx context.Context, now time.Time, opts discount.ListOptions) ([]discount.CustomerView, error) {
	query, args, err := buildListQuery(listCustomersSQL, now, opts, customerSortColumns)
	if err != nil {
		return nil, err
	}

	rows, err := v.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	var views []discount.CustomerView
	for rows.Next() {
		var cv discount.CustomerView
		if err := rows.Scan(&cv.ID, &cv.Name, &cv.MaxDiscount); err != nil {
			return nil, fmt.Errorf("scanning customer view: %w", err)
		}
		views = append(views, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading customer views: %w", err)
	}
	return views, nil
}

const listProductsSQL = `
SELECT v.id, v.name, v.price, v.brand, v.category,
       v.product_discount, v.brand_discount, v.category_discount,
       v.max_discount, v.discount_price
FROM (
	SELECT p.id, p.name, p.price, b.name AS brand, cat.name AS category,
	       COALESCE(pi.discount, 0) AS product_discount,
	       COALESCE(bi.discount, 0) AS brand_discount,
	       COALESCE(ci.discount, 0) AS category_discount,
	       GREATEST(COALESCE(pi.discount, 0), COALESCE(bi.discount, 0), COALESCE(ci.discount, 0)) AS max_discount,
	       p.price - p.price
	           * GREATEST(COALESCE(pi.discount, 0), COALESCE(bi.discount, 0), COALESCE(ci.discount, 0))
	           / 100.0 AS discount_price
	FROM products p
	JOIN brands b ON b.id = p.brand_id
	JOIN categories cat ON cat.id = p.category_id
	LEFT JOIN (
		SELECT i.product_id, MAX(i.discount) AS discount
		FROM campaign_product_items i
		JOIN campaigns d ON d.id = i.campaign_id
		WHERE d.valid_from <= $1 AND d.valid_to >= $1
		GROUP BY i.product_id
	) pi ON pi.product_id = p.id
	LEFT JOIN (
		SELECT i.brand_id, MAX(i.discount) AS discount
		FROM campaign_brand_items i
		JOIN campaigns d ON d.id = i.campaign_id
		WHERE d.valid_from <= $1 AND d.valid_to >= $1
		GROUP BY i.brand_id
	) bi ON bi.brand_id = p.brand_id
	LEFT JOIN (
		SELECT i.category_id, MAX(i.discount) AS discount
		FROM campaign_category_items i
		JOIN campaigns d ON d.id = i.campaign_id
		WHERE d.valid_from <= $1 AND d.valid_to >= $1
		GROUP BY i.category_id
	) ci ON ci.category_id = p.category_id
) v`

// ListProducts returns every product with its per-axis discounts, the
// max-wins combination, and the discounted price, all resolved at now.
// The discounted price is re-rounded half-even in Go to match the frozen
// pricing path; the SQL expression stays unrounded so filters and sorting
// see the exact value.
func (v *Views) ListProducts(ctx context.Context, now time.Time, opts discount.ListOptions) ([]discount.ProductView, error) {
	query, args, err := buildListQuery(listProductsSQL, now, opts, productSortColumns)
	if err != nil {
		return nil, err
	}

	rows, err := v.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var views []discount.ProductView
	for rows.Next() {
		var pv discount.ProductView
		if err := rows.Scan(
			&pv.ID, &pv.Name, &pv.Price, &pv.Brand, &pv.Category,
			&pv.ProductDiscount, &pv.BrandDiscount, &pv.CategoryDiscount,
			&pv.MaxDiscount, &pv.DiscountPrice,
		); err != nil {
			return nil, fmt.Errorf("scanning product view: %w", err)
		}
		pv.DiscountPrice = pv.DiscountPrice.RoundBank(2)
		views = append(views, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading product views: %w", err)
	}
	return views, nil
}

// Sort keys are whitelisted per view so user input never reaches the SQL
// text directly.
var (
	customerSortColumns = map[discount.SortKey]string{
		discount.SortByName:        "name",
		discount.SortByMaxDiscount: "max_discount",
	}
	productSortColumns = map[discount.SortKey]string{
		discount.SortByName:          "name",
		discount.SortByPrice:         "price",
		discount.SortByMaxDiscount:   "max_discount",
		discount.SortByDiscountPrice: "discount_price",
	}
)

// buildListQuery appends WHERE/ORDER BY clauses for the validated options.
// $1 is always the query instant; filters take the following placeholders.
func buildListQuery(base string, now time.Time, opts discount.ListOptions, sortColumns map[discount.SortKey]string) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(base)

	args := []any{now}
	var conds []string

	appendCond := func(column, op string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("v.%s %s $%d", column, op, len(args)))
	}

	if opts.MinDiscount != nil {
		appendCond("max_discount", ">=", *opts.MinDiscount)
	}
	if opts.MaxDiscount != nil {
		appendCond("max_discount", "<=", *opts.MaxDiscount)
	}
	if _, ok := sortColumns[discount.SortByDiscountPrice]; ok {
		if opts.MinPrice != nil {
			appendCond("discount_price", ">=", *opts.MinPrice)
		}
		if opts.MaxPrice != nil {
			appendCond("discount_price", "<=", *opts.MaxPrice)
		}
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = discount.SortByName
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return "", nil, errors.Wrapf(discount.ErrBadSortKey, "%q", sortBy)
	}

	sb.WriteString(" ORDER BY v.")
	sb.WriteString(column)
	if opts.SortDesc {
		sb.WriteString(" DESC")
	}
	sb.WriteString(", v.id")

	return sb.String(), args, nil
}
