//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/easymade/booking-api/internal/domain/coupon"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "booking",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			log.Printf("terminate container: %v", err)
		}
	}()

	host, err := ctr.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	url := fmt.Sprintf("postgres://test:test@%s:%s/booking?sslmode=disable", host, port.Port())
	pool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

func insertCoupon(t *testing.T, c coupon.Coupon) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `INSERT INTO coupons
		(scope, id, type, title, code, description, is_active, discount_type,
		 discount_value, threshold, valid_from, valid_until, usage_limit,
		 used_count, min_order_amount, max_discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.Ref.Scope, c.Ref.ID, string(c.Type), c.Title, c.Code, c.Description,
		c.IsActive, string(c.DiscountType), c.DiscountValue, c.Threshold,
		c.ValidFrom, c.ValidUntil, c.UsageLimit, c.UsedCount,
		c.MinOrderAmount, c.MaxDiscount,
	)
	require.NoError(t, err)
}

func usedCount(t *testing.T, ref coupon.Ref) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT used_count FROM coupons WHERE scope = $1 AND id = $2`,
		ref.Scope, ref.ID).Scan(&n)
	require.NoError(t, err)
	return n
}

func redemptionCount(t *testing.T, ref coupon.Ref) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM coupon_redemptions WHERE scope = $1 AND coupon_id = $2`,
		ref.Scope, ref.ID).Scan(&n)
	require.NoError(t, err)
	return n
}

func festivalCoupon(id, code string, limit, used int) coupon.Coupon {
	now := time.Now()
	return coupon.Coupon{
		Ref:           coupon.Ref{Scope: "festival-2025", ID: id},
		Type:          coupon.TypeFestivalAll,
		Title:         "Festival offer",
		Code:          code,
		IsActive:      true,
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     now.Add(-24 * time.Hour),
		ValidUntil:    now.Add(24 * time.Hour),
		UsageLimit:    limit,
		UsedCount:     used,
	}
}

func TestRedeemConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(pool)

	c := festivalCoupon("c-same-user", "SAMEUSER", 100, 0)
	insertCoupon(t, c)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejects   int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Redeem(ctx, c.Ref, "u1",
				coupon.Context{OrderAmount: decimal.NewFromInt(200)}, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case err == coupon.ErrAlreadyApplied || err == coupon.ErrConflict:
				rejects++
			default:
				t.Errorf("unexpected redeem error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one attempt may redeem")
	assert.Equal(t, attempts-1, rejects)
	assert.Equal(t, 1, usedCount(t, c.Ref))
	assert.Equal(t, 1, redemptionCount(t, c.Ref))
}

func TestRedeemConcurrentUsageCap(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(pool)

	const (
		limit    = 5
		used     = 2
		attempts = 12
	)
	c := festivalCoupon("c-cap", "CAPPED", limit, used)
	insertCoupon(t, c)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("cap-user-%d", i)
			_, err := repo.Redeem(ctx, c.Ref, userID,
				coupon.Context{OrderAmount: decimal.NewFromInt(100)}, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.Contains(t,
				[]error{coupon.ErrLimitReached, coupon.ErrNotAvailable, coupon.ErrConflict},
				err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit-used, successes)
	assert.Equal(t, limit, usedCount(t, c.Ref), "used count must not exceed the limit")
}

func TestRedeemExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(pool)

	c := festivalCoupon("c-expired", "EXPIRED", 10, 0)
	c.ValidUntil = time.Now().Add(-time.Hour)
	insertCoupon(t, c)

	_, err := repo.Redeem(ctx, c.Ref, "u1", coupon.Context{}, time.Now())
	require.ErrorIs(t, err, coupon.ErrNotAvailable)
	assert.Equal(t, 0, usedCount(t, c.Ref))
	assert.Equal(t, 0, redemptionCount(t, c.Ref))
}

func TestFindByCodeDeterministicTieBreak(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(pool)

	a := festivalCoupon("dup-a", "DUPCODE", 10, 0)
	a.Ref.Scope = "alpha"
	b := festivalCoupon("dup-b", "DUPCODE", 10, 0)
	b.Ref.Scope = "beta"
	insertCoupon(t, b)
	insertCoupon(t, a)

	got, err := repo.FindByCode(ctx, "DUPCODE")
	require.NoError(t, err)
	assert.Equal(t, coupon.Ref{Scope: "alpha", ID: "dup-a"}, got.Ref)
}
