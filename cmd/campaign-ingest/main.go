// Command campaign-ingest loads festival coupon codes from marketing dump
// files into the catalog.
//
// Marketing exports arrive as gzip-compressed files of one code per line,
// generated independently by several partners. A code is trusted only when
// it appears in at least two dumps; single-file codes are treated as
// partner noise. The dumps are far too large to hold in memory, so the
// tool streams each file twice: a first pass builds one bloom filter per
// file, a second pass collects codes that other files' filters also
// report, and the survivors are bulk-inserted as festival coupons.
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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/easymade/booking-api/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 6
	maxCodeLen    = 12
	insertBatch   = 500
)

const upsertFestivalCouponSQL = `INSERT INTO coupons
	(scope, id, type, title, code, description, is_active,
	 discount_type, discount_value, max_discount,
	 valid_from, valid_until, usage_limit)
	VALUES ($1, $2, 'festivalAll', $3, $4, $5, TRUE,
	        'percentage', $6, $7, $8, $9, $10)
	ON CONFLICT (scope, id) DO NOTHING`

// campaign holds the coupon definition stamped onto every ingested code.
type campaign struct {
	scope       string
	title       string
	description string
	discount    decimal.Decimal
	maxDiscount decimal.Decimal
	validFrom   time.Time
	validUntil  time.Time
	usageLimit  int
}

func main() {
	var (
		dataDir     string
		numFiles    int
		databaseURL string
		name        string
		title       string
		description string
		discount    string
		maxDiscount string
		validFrom   string
		validUntil  string
		usageLimit  int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing festivalcodesN.gz files")
	flag.IntVar(&numFiles, "files", 3, "number of dump files to cross-check")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&name, "campaign", "", "campaign name, used as the catalog scope (e.g. diwali-2025)")
	flag.StringVar(&title, "title", "Festival offer", "coupon title shown to customers")
	flag.StringVar(&description, "description", "", "coupon description shown to customers")
	flag.StringVar(&discount, "discount", "10", "discount percentage")
	flag.StringVar(&maxDiscount, "max-discount", "50", "discount cap per redemption")
	flag.StringVar(&validFrom, "valid-from", "", "campaign start (RFC 3339)")
	flag.StringVar(&validUntil, "valid-until", "", "campaign end (RFC 3339)")
	flag.IntVar(&usageLimit, "usage-limit", 1, "redemptions allowed per code")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if name == "" {
		slog.Error("--campaign is required")
		os.Exit(1)
	}

	c, err := parseCampaign(name, title, description, discount, maxDiscount, validFrom, validUntil, usageLimit)
	if err != nil {
		slog.Error("invalid campaign flags", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, numFiles, databaseURL, c); err != nil {
		slog.Error("campaign ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("campaign ingest completed successfully")
}

func parseCampaign(name, title, description, discount, maxDiscount, validFrom, validUntil string, usageLimit int) (campaign, error) {
	c := campaign{
		scope:       "campaigns/" + name,
		title:       title,
		description: description,
		usageLimit:  usageLimit,
	}

	var err error
	if c.discount, err = decimal.NewFromString(discount); err != nil {
		return c, errors.Wrap(err, "parse discount")
	}
	if c.maxDiscount, err = decimal.NewFromString(maxDiscount); err != nil {
		return c, errors.Wrap(err, "parse max discount")
	}
	if c.validFrom, err = time.Parse(time.RFC3339, validFrom); err != nil {
		return c, errors.Wrap(err, "parse valid-from")
	}
	if c.validUntil, err = time.Parse(time.RFC3339, validUntil); err != nil {
		return c, errors.Wrap(err, "parse valid-until")
	}
	if !c.validUntil.After(c.validFrom) {
		return c, errors.New("valid-until must be after valid-from")
	}
	return c, nil
}

func run(ctx context.Context, dataDir string, numFiles int, databaseURL string, c campaign) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("festivalcodes%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep codes appearing in 2+ files.
	slog.Info("pass 2: cross-checking codes")

	codes, err := crossCheckCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check codes")
	}

	slog.Info("verified codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		slog.Info("no verified codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, c, codes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}
	return nil
}

// buildBloomFilters streams every file once and builds a bloom filter of
// its codes, one goroutine per file.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var n uint64

			err := streamCodes(ctx, path, func(code string) {
				filter.AddString(code)
				if n++; n%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", n))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// crossCheckCodes streams every file a second time and keeps codes that
// some OTHER file's bloom filter also reports. Presence is tracked as a
// per-file bitmask so the final popcount gives the number of files a code
// appeared in.
func crossCheckCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	perFile := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			seen := make(map[string]uint)
			bit := uint(1) << uint(i)
			var n uint64

			err := streamCodes(ctx, path, func(code string) {
				if n++; n%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("file", i+1), slog.Uint64("codes", n))
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						seen[code] |= bit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Uint64("total_codes", n),
				slog.Int("candidates", len(seen)),
			)
			perFile[i] = seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, seen := range perFile {
		for code, mask := range seen {
			merged[code] |= mask
		}
	}

	var verified []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			verified = append(verified, code)
		}
	}
	return verified, nil
}

// streamCodes reads a gzip-compressed dump line by line, passing every
// plausibly-sized code to fn.
func streamCodes(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gunzip %s", path)
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if code := sc.Text(); len(code) >= minCodeLen && len(code) <= maxCodeLen {
			fn(code)
		}
	}
	return errors.Wrapf(sc.Err(), "scan %s", path)
}

// writeCoupons inserts the verified codes as festival coupons in batches.
// Each code becomes its own catalog entry under the campaign scope, with
// the code doubling as the document id. Re-running the ingest is safe:
// existing entries are left untouched.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, c campaign, codes []string) error {
	slog.Info("writing coupons to database",
		slog.Int("count", len(codes)),
		slog.String("scope", c.scope),
	)

	written := 0
	for start := 0; start < len(codes); start += insertBatch {
		end := min(start+insertBatch, len(codes))

		batch := &pgx.Batch{}
		for _, code := range codes[start:end] {
			batch.Queue(upsertFestivalCouponSQL,
				c.scope, code, c.title, code, c.description,
				c.discount, c.maxDiscount,
				c.validFrom, c.validUntil, c.usageLimit,
			)
		}

		br := pool.SendBatch(ctx, batch)
		if err := br.Close(); err != nil {
			return errors.Wrapf(err, "insert batch starting at %d", start)
		}

		written = end
		slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(codes)))
	}
	return nil
}
