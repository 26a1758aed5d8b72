package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 10_000_000
	minSKULen     = 8
	maxSKULen     = 24
)

// fileResult holds candidate SKUs found in a single feed during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir      string
		databaseURL  string
		campaignName string
		percent      int
		windowDays   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing skufeedN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&campaignName, "campaign-name", "Partner feed promotion", "name for the created campaign")
	flag.IntVar(&percent, "discount", 10, "discount percentage for ingested products")
	flag.IntVar(&windowDays, "window-days", 30, "campaign validity window in days, starting now")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, campaignName, percent, windowDays); err != nil {
		slog.Error("rule ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("rule ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, campaignName string, percent, windowDays int) error {
	if err := discount.ValidatePercent(percent); err != nil {
		return err
	}

	files := make([]string, numFeeds)
	for i := range numFeeds {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("skufeed%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFeeds))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find candidate SKUs appearing in 2+ feeds.
	slog.Info("pass 2: finding candidate SKUs")

	validSKUs, err := findValidSKUs(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid SKUs")
	}

	slog.Info("valid SKUs found", slog.Int("count", len(validSKUs)))

	if len(validSKUs) == 0 {
		slog.Info("no valid SKUs, not creating a campaign")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := createCampaign(ctx, pool, validSKUs, campaignName, percent, windowDays); err != nil {
		return errors.Wrap(err, "create campaign from feed")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(sku string) {
			if len(sku) >= minSKULen && len(sku) <= maxSKULen {
				filter.AddString(sku)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("skus", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidSKUs re-streams each feed and checks SKUs against OTHER feeds'
// bloom filters. A SKU qualifies for the promotion if 2 or more partner
// feeds carry it.
func findValidSKUs(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all feeds.
	merged := make(map[string]uint)
	for _, r := range results {
		for sku, mask := range r.candidates {
			merged[sku] |= mask
		}
	}

	// Keep SKUs appearing in 2+ feeds.
	var valid []string
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, sku)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(sku string) {
			if len(sku) < minSKULen || len(sku) > maxSKULen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("skus", count),
				)
			}

			// Check if this SKU appears in any OTHER feed's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(sku) {
					candidates[sku] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed feed and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(sku string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// createCampaign resolves feed SKUs to known products and creates a single
// campaign carrying one product item per match. Feeds regularly mention SKUs
// the catalog does not sell; those are dropped.
func createCampaign(ctx context.Context, pool *pgxpool.Pool, skus []string, name string, percent, windowDays int) error {
	rows, err := pool.Query(ctx, `SELECT id FROM products WHERE id = ANY($1)`, skus)
	if err != nil {
		return errors.Wrap(err, "match SKUs against products")
	}
	defer rows.Close()

	var known []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return errors.Wrap(err, "scan product id")
		}
		known = append(known, id)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "read matched products")
	}

	slog.Info("matched SKUs to catalog",
		slog.Int("skus", len(skus)),
		slog.Int("matched", len(known)),
	)

	if len(known) == 0 {
		slog.Info("no feed SKU matches a catalog product, not creating a campaign")
		return nil
	}

	now := time.Now().UTC()
	campaign := &discount.Campaign{
		ID:     uuid.NewString(),
		Name:   name,
		Window: discount.Window{From: now, To: now.AddDate(0, 0, windowDays)},
	}

	items := postgres.CampaignItems{
		Products: make([]discount.CampaignItem, 0, len(known)),
	}
	for _, id := range known {
		items.Products = append(items.Products, discount.CampaignItem{
			ID:         uuid.NewString(),
			CampaignID: campaign.ID,
			ScopeID:    id,
			Percent:    percent,
		})
	}

	store := postgres.NewRuleStore(pool)
	if err := store.CreateCampaign(ctx, campaign, items); err != nil {
		return errors.Wrapf(err, "create campaign %s", campaign.ID)
	}

	slog.Info("created campaign",
		slog.String("id", campaign.ID),
		slog.String("name", name),
		slog.Int("products", len(items.Products)),
		slog.Int("discount", percent),
	)

	return nil
}
