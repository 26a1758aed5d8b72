package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

var _ discount.RuleStore = (*RuleStore)(nil)

// RuleStore is the temporal rule store backed by PostgreSQL. Reads return
// denormalized rule rows with their validity windows; the resolution pass
// over them happens in the domain layer.
type RuleStore struct {
	pool *pgxpool.Pool
}

// NewRuleStore returns a RuleStore that uses the given pool.
func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

// CustomerRules returns every discount rule attached to the customer.
func (s *RuleStore) CustomerRules(ctx context.Context, customerID string) ([]discount.CustomerRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, valid_from, valid_to, discount
		 FROM customer_discounts WHERE customer_id = $1`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying customer rules for %q: %w", customerID, err)
	}
	defer rows.Close()

	var rules []discount.CustomerRule
	for rows.Next() {
		var r discount.CustomerRule
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Window.From, &r.Window.To, &r.Percent); err != nil {
			return nil, fmt.Errorf("scanning customer rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading customer rules: %w", err)
	}
	return rules, nil
}

// ProductRules returns the product's per-axis campaign rules, each carrying
// its owning campaign's validity window. Brand and category axes join
// through the product's own references.
func (s *RuleStore) ProductRules(ctx context.Context, productID string) (discount.AxisRules, error) {
	var rules discount.AxisRules

	product, err := s.axisRules(ctx,
		`SELECT c.valid_from, c.valid_to, i.discount
		 FROM campaign_product_items i
		 JOIN campaigns c ON c.id = i.campaign_id
		 WHERE i.product_id = $1`,
		productID,
	)
	if err != nil {
		return rules, fmt.Errorf("product axis for %q: %w", productID, err)
	}

	brand, err := s.axisRules(ctx,
		`SELECT c.valid_from, c.valid_to, i.discount
		 FROM campaign_brand_items i
		 JOIN campaigns c ON c.id = i.campaign_id
		 JOIN products p ON p.brand_id = i.brand_id
		 WHERE p.id = $1`,
		productID,
	)
	if err != nil {
		return rules, fmt.Errorf("brand axis for %q: %w", productID, err)
	}

	category, err := s.axisRules(ctx,
		`SELECT c.valid_from, c.valid_to, i.discount
		 FROM campaign_category_items i
		 JOIN campaigns c ON c.id = i.campaign_id
		 JOIN products p ON p.category_id = i.category_id
		 WHERE p.id = $1`,
		productID,
	)
	if err != nil {
		return rules, fmt.Errorf("category axis for %q: %w", productID, err)
	}

	rules.Product = product
	rules.Brand = brand
	rules.Category = category
	return rules, nil
}

func (s *RuleStore) axisRules(ctx context.Context, query, productID string) ([]discount.Rule, error) {
	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []discount.Rule
	for rows.Next() {
		var r discount.Rule
		if err := rows.Scan(&r.Window.From, &r.Window.To, &r.Percent); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// CreateCustomerRule persists a personal discount rule. The percentage is
// validated before the write; the schema CHECK is only a backstop.
func (s *RuleStore) CreateCustomerRule(ctx context.Context, r *discount.CustomerRule) error {
	if err := discount.ValidatePercent(r.Percent); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO customer_discounts (id, customer_id, valid_from, valid_to, discount)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.CustomerID, r.Window.From, r.Window.To, r.Percent,
	)
	if err != nil {
		return fmt.Errorf("creating customer rule %q: %w", r.ID, err)
	}
	return nil
}

// CampaignItems groups the per-axis items persisted with a campaign.
type CampaignItems struct {
	Products   []discount.CampaignItem
	Brands     []discount.CampaignItem
	Categories []discount.CampaignItem
}

// CreateCampaign persists a campaign head row and its items in one
// transaction. Items are owned by the campaign: deleting the campaign
// cascades to them.
func (s *RuleStore) CreateCampaign(ctx context.Context, c *discount.Campaign, items CampaignItems) error {
	for _, group := range [][]discount.CampaignItem{items.Products, items.Brands, items.Categories} {
		for _, item := range group {
			if err := discount.ValidatePercent(item.Percent); err != nil {
				return err
			}
		}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO campaigns (id, name, valid_from, valid_to) VALUES ($1, $2, $3, $4)`,
			c.ID, c.Name, c.Window.From, c.Window.To,
		)
		if err != nil {
			return fmt.Errorf("creating campaign %q: %w", c.ID, err)
		}

		if err := insertItems(ctx, tx,
			`INSERT INTO campaign_product_items (id, campaign_id, product_id, discount) VALUES ($1, $2, $3, $4)`,
			c.ID, items.Products,
		); err != nil {
			return fmt.Errorf("campaign %q product items: %w", c.ID, err)
		}
		if err := insertItems(ctx, tx,
			`INSERT INTO campaign_brand_items (id, campaign_id, brand_id, discount) VALUES ($1, $2, $3, $4)`,
			c.ID, items.Brands,
		); err != nil {
			return fmt.Errorf("campaign %q brand items: %w", c.ID, err)
		}
		if err := insertItems(ctx, tx,
			`INSERT INTO campaign_category_items (id, campaign_id, category_id, discount) VALUES ($1, $2, $3, $4)`,
			c.ID, items.Categories,
		); err != nil {
			return fmt.Errorf("campaign %q category items: %w", c.ID, err)
		}
		return nil
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, query, campaignID string, items []discount.CampaignItem) error {
	for _, item := range items {
		if _, err := tx.Exec(ctx, query, item.ID, campaignID, item.ScopeID, item.Percent); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCampaignWindow rewrites a campaign's validity window.
func (s *RuleStore) UpdateCampaignWindow(ctx context.Context, campaignID string, w discount.Window) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET valid_from = $2, valid_to = $3 WHERE id = $1`,
		campaignID, w.From, w.To,
	)
	if err != nil {
		return fmt.Errorf("updating campaign %q window: %w", campaignID, err)
	}
	return nil
}

// DeleteCampaign removes a campaign; its items go with it.
func (s *RuleStore) DeleteCampaign(ctx context.Context, campaignID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("deleting campaign %q: %w", campaignID, err)
	}
	return nil
}
