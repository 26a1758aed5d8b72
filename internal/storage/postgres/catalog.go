package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/catalog"
)

var (
	_ catalog.CustomerRepository = (*CustomerRepository)(nil)
	_ catalog.ProductRepository  = (*ProductRepository)(nil)
	_ catalog.BrandRepository    = (*BrandRepository)(nil)
	_ catalog.CategoryRepository = (*CategoryRepository)(nil)
)

// CustomerRepository implements catalog.CustomerRepository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Create persists a new customer.
func (r *CustomerRepository) Create(ctx context.Context, c *catalog.Customer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customers (id, name) VALUES ($1, $2)`,
		c.ID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("creating customer %q: %w", c.ID, err)
	}
	return nil
}

// GetByID returns a single customer. It returns catalog.ErrNotFound when no
// matching customer exists.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*catalog.Customer, error) {
	var c catalog.Customer
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

// Delete removes a customer. Customers referenced by discount rules or orders
// are protected: the delete fails with catalog.ErrProtected.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting customer %q: %w", id, mapDeleteErr(err))
	}
	return nil
}

// ProductRepository implements catalog.ProductRepository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, name, price, brand_id, category_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Price, p.BrandID, p.CategoryID,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// GetByID returns a single product. It returns catalog.ErrNotFound when no
// matching product exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price, brand_id, category_id FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.BrandID, &p.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns all products matching the given ids in a single query.
// Missing ids are simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price, brand_id, category_id FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.BrandID, &p.CategoryID); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}
	return products, nil
}

// Delete removes a product. Products referenced by campaign items or order
// items are protected: the delete fails with catalog.ErrProtected.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, mapDeleteErr(err))
	}
	return nil
}

// BrandRepository implements catalog.BrandRepository backed by PostgreSQL.
type BrandRepository struct {
	pool *pgxpool.Pool
}

// NewBrandRepository returns a BrandRepository that uses the given pool.
func NewBrandRepository(pool *pgxpool.Pool) *BrandRepository {
	return &BrandRepository{pool: pool}
}

// Create persists a new brand.
func (r *BrandRepository) Create(ctx context.Context, b *catalog.Brand) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO brands (id, name) VALUES ($1, $2)`, b.ID, b.Name)
	if err != nil {
		return fmt.Errorf("creating brand %q: %w", b.ID, err)
	}
	return nil
}

// Delete removes a brand, failing with catalog.ErrProtected while referenced.
func (r *BrandRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting brand %q: %w", id, mapDeleteErr(err))
	}
	return nil
}

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// Create persists a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO categories (id, name) VALUES ($1, $2)`, c.ID, c.Name)
	if err != nil {
		return fmt.Errorf("creating category %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes a category, failing with catalog.ErrProtected while referenced.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting category %q: %w", id, mapDeleteErr(err))
	}
	return nil
}
