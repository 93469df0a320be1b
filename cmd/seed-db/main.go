// Command seed-db prepares a database for local development: it runs the
// migrations, loads the embedded demo coupon catalog, and creates a few
// demo customers with lifetime metrics that exercise every coupon type.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/easymade/booking-api/db"
	"github.com/easymade/booking-api/internal/storage/postgres"
)

const (
	upsertCouponSQL = `INSERT INTO coupons
		(scope, id, type, title, code, description, is_active,
		 discount_type, discount_value, threshold,
		 valid_from, valid_until, usage_limit, min_order_amount, max_discount)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (scope, id) DO UPDATE SET
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			code = EXCLUDED.code,
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			threshold = EXCLUDED.threshold,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			usage_limit = EXCLUDED.usage_limit,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount = EXCLUDED.max_discount`

	upsertUserSQL = `INSERT INTO users (id, name, email, phone, hours, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			hours = EXCLUDED.hours,
			total_amount = EXCLUDED.total_amount`
)

// couponJSON mirrors the embedded catalog file.
type couponJSON struct {
	Scope          string           `json:"scope"`
	ID             string           `json:"id"`
	Type           string           `json:"type"`
	Title          string           `json:"title"`
	Code           string           `json:"code"`
	Description    string           `json:"description"`
	DiscountType   string           `json:"discountType"`
	DiscountValue  decimal.Decimal  `json:"discountValue"`
	Threshold      *decimal.Decimal `json:"threshold"`
	ValidFrom      time.Time        `json:"validFrom"`
	ValidUntil     time.Time        `json:"validUntil"`
	UsageLimit     int              `json:"usageLimit"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount"`
}

type demoUser struct {
	id, name, email, phone string
	hours, totalAmount     decimal.Decimal
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
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

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	var coupons []couponJSON
	if err := json.Unmarshal(db.SeedCoupons, &coupons); err != nil {
		return errors.Wrap(err, "parse embedded coupon catalog")
	}

	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.Scope, c.ID, c.Type, c.Title, c.Code, c.Description,
			c.DiscountType, c.DiscountValue, c.Threshold,
			c.ValidFrom, c.ValidUntil, c.UsageLimit,
			c.MinOrderAmount, c.MaxDiscount,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s/%s", c.Scope, c.ID)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("scope", c.Scope))
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	users := []demoUser{
		{
			id: "demo-new", name: "Nadia New", email: "nadia@example.com", phone: "+971500000001",
			hours: decimal.Zero, totalAmount: decimal.Zero,
		},
		{
			id: "demo-regular", name: "Ravi Regular", email: "ravi@example.com", phone: "+971500000002",
			hours: decimal.NewFromInt(24), totalAmount: decimal.NewFromInt(640),
		},
		{
			id: "demo-loyal", name: "Lena Loyal", email: "lena@example.com", phone: "+971500000003",
			hours: decimal.NewFromInt(58), totalAmount: decimal.NewFromInt(1520),
		},
	}

	slog.Info("upserting demo users", slog.Int("count", len(users)))

	for _, u := range users {
		if _, err := pool.Exec(ctx, upsertUserSQL,
			u.id, u.name, u.email, u.phone, u.hours, u.totalAmount,
		); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.id)
		}

		slog.Info("upserted user", slog.String("id", u.id), slog.String("name", u.name))
	}
	return nil
}
