package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/storage/postgres"
)

type catalogJSON struct {
	Brands     []namedJSON   `json:"brands"`
	Categories []namedJSON   `json:"categories"`
	Products   []productJSON `json:"products"`
	Customers  []namedJSON   `json:"customers"`
}

type namedJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Brand    string          `json:"brand"`
	Category string          `json:"category"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PROMO_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var cat catalogJSON
	if err := json.Unmarshal(data, &cat); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	for _, b := range cat.Brands {
		if _, err := pool.Exec(ctx,
			`INSERT INTO brands (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			b.ID, b.Name,
		); err != nil {
			return errors.Wrapf(err, "upsert brand %s", b.ID)
		}
	}
	slog.Info("upserted brands", slog.Int("count", len(cat.Brands)))

	for _, c := range cat.Categories {
		if _, err := pool.Exec(ctx,
			`INSERT INTO categories (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			c.ID, c.Name,
		); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}
	slog.Info("upserted categories", slog.Int("count", len(cat.Categories)))

	for _, p := range cat.Products {
		if _, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price, brand_id, category_id)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET
			   name = EXCLUDED.name, price = EXCLUDED.price,
			   brand_id = EXCLUDED.brand_id, category_id = EXCLUDED.category_id`,
			p.ID, p.Name, p.Price, p.Brand, p.Category,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	slog.Info("upserted products", slog.Int("count", len(cat.Products)))

	for _, c := range cat.Customers {
		if _, err := pool.Exec(ctx,
			`INSERT INTO customers (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			c.ID, c.Name,
		); err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}
	}
	slog.Info("upserted customers", slog.Int("count", len(cat.Customers)))

	return nil
}

// seedDiscounts creates a demo rule set: one personal discount for the first
// customer and one month-long campaign touching every axis. Re-running the
// seed adds nothing once a demo campaign exists.
func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	var exists bool
	if err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaigns WHERE name = $1)`, "Seed demo campaign",
	).Scan(&exists); err != nil {
		return errors.Wrap(err, "check existing demo campaign")
	}
	if exists {
		slog.Info("demo campaign already present, skipping discount seed")
		return nil
	}

	var customerID string
	if err := pool.QueryRow(ctx,
		`SELECT id FROM customers ORDER BY id LIMIT 1`,
	).Scan(&customerID); err != nil {
		return errors.Wrap(err, "pick customer for demo rule")
	}

	store := postgres.NewRuleStore(pool)
	now := time.Now().UTC()
	window := discount.Window{From: now, To: now.AddDate(0, 1, 0)}

	if err := store.CreateCustomerRule(ctx, &discount.CustomerRule{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Window:     window,
		Percent:    10,
	}); err != nil {
		return errors.Wrap(err, "create demo customer rule")
	}

	slog.Info("created demo customer rule", slog.String("customer", customerID))

	var productID, brandID, categoryID string
	if err := pool.QueryRow(ctx,
		`SELECT id, brand_id, category_id FROM products ORDER BY id LIMIT 1`,
	).Scan(&productID, &brandID, &categoryID); err != nil {
		return errors.Wrap(err, "pick product for demo campaign")
	}

	campaign := &discount.Campaign{
		ID:     uuid.NewString(),
		Name:   "Seed demo campaign",
		Window: window,
	}
	items := postgres.CampaignItems{
		Products: []discount.CampaignItem{
			{ID: uuid.NewString(), CampaignID: campaign.ID, ScopeID: productID, Percent: 25},
		},
		Brands: []discount.CampaignItem{
			{ID: uuid.NewString(), CampaignID: campaign.ID, ScopeID: brandID, Percent: 10},
		},
		Categories: []discount.CampaignItem{
			{ID: uuid.NewString(), CampaignID: campaign.ID, ScopeID: categoryID, Percent: 15},
		},
	}
	if err := store.CreateCampaign(ctx, campaign, items); err != nil {
		return errors.Wrap(err, "create demo campaign")
	}

	slog.Info("created demo campaign", slog.String("id", campaign.ID))

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	repo := postgres.NewAPIKeyRepository(pool)
	if err := repo.UpsertKey(ctx, &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		Name:    "Default test key",
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default test key"))

	return nil
}
