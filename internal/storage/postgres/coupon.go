package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/easymade/booking-api/internal/domain/coupon"
	"github.com/easymade/booking-api/internal/domain/user"
)

const couponColumns = `scope, id, type, title, code, description, is_active,
	discount_type, discount_value, threshold, valid_from, valid_until,
	usage_limit, used_count, min_order_amount, max_discount`

const (
	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY scope, id`

	// Code uniqueness is operational, not structural: on duplicates the
	// (scope, id) ordering makes the winner deterministic.
	findCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE code = $1 ORDER BY scope, id LIMIT 1`

	hasAppliedSQL = `SELECT applied FROM coupon_redemptions
		WHERE scope = $1 AND coupon_id = $2 AND user_id = $3`

	lockCouponSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE scope = $1 AND id = $2 FOR UPDATE`

	userMetricsSQL = `SELECT hours, total_amount FROM users WHERE id = $1`

	incrementUsedSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE scope = $1 AND id = $2`

	insertRedemptionSQL = `INSERT INTO coupon_redemptions
		(scope, coupon_id, user_id, applied, applied_at, discount)
		VALUES ($1, $2, $3, TRUE, $4, $5)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// ListAll returns the full coupon catalog across all scopes.
func (r *CouponRepository) ListAll(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// FindByCode looks up the first coupon matching code across all scopes.
// Returns coupon.ErrNotFound when no entry matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}
	return &c, nil
}

// HasApplied reports whether userID holds a committed redemption record
// for the referenced coupon.
func (r *CouponRepository) HasApplied(ctx context.Context, ref coupon.Ref, userID string) (bool, error) {
	var applied bool
	err := r.pool.QueryRow(ctx, hasAppliedSQL, ref.Scope, ref.ID, userID).Scan(&applied)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrapf(err, "check redemption of %s/%s by %s", ref.Scope, ref.ID, userID)
	}
	return applied, nil
}

// Redeem performs the atomic at-most-once redemption. The coupon row is
// locked for the duration of the transaction, so every check below runs
// against state no concurrent redemption can invalidate. The lock covers
// exactly the contended documents: this coupon, its redemption record for
// this user, and a read of the user row.
func (r *CouponRepository) Redeem(
	ctx context.Context,
	ref coupon.Ref,
	userID string,
	ec coupon.Context,
	now time.Time,
) (*coupon.Redemption, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, errors.Wrap(err, "begin redemption tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.Query(ctx, lockCouponSQL, ref.Scope, ref.ID)
	if err != nil {
		return nil, mapTxErr("lock coupon", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, mapTxErr("lock coupon", err)
	}

	var applied bool
	err = tx.QueryRow(ctx, hasAppliedSQL, ref.Scope, ref.ID, userID).Scan(&applied)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapTxErr("read redemption record", err)
	}
	if applied {
		return nil, coupon.ErrAlreadyApplied
	}

	metrics, err := readMetrics(ctx, tx, userID)
	if err != nil {
		return nil, mapTxErr("read user metrics", err)
	}

	if !coupon.IsAvailable(c, now) {
		return nil, coupon.ErrNotAvailable
	}
	if !coupon.IsEligibleForUser(c, metrics, ec) {
		return nil, coupon.ErrNotEligible
	}
	// Re-asserted explicitly: the availability check above and this cap
	// check must agree on the freshly locked row.
	if c.UsedCount >= c.UsageLimit {
		return nil, coupon.ErrLimitReached
	}

	red := coupon.Redemption{
		UserID:    userID,
		AppliedAt: now,
		Discount:  coupon.ComputeDiscount(c, ec.OrderAmount),
	}

	if _, err := tx.Exec(ctx, incrementUsedSQL, ref.Scope, ref.ID); err != nil {
		return nil, mapTxErr("increment used count", err)
	}
	if _, err := tx.Exec(ctx, insertRedemptionSQL,
		ref.Scope, ref.ID, userID, red.AppliedAt, red.Discount); err != nil {
		return nil, mapTxErr("insert redemption record", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapTxErr("commit redemption", err)
	}
	return &red, nil
}

// mapTxErr converts low-level transaction errors to domain sentinels:
// duplicate redemption inserts become ErrAlreadyApplied, serialization
// failures and deadlocks become the retryable ErrConflict.
func mapTxErr(op string, err error) error {
	switch pgErrCode(err) {
	case codeUniqueViolation:
		return coupon.ErrAlreadyApplied
	case codeSerializationFailure, codeDeadlockDetected:
		return coupon.ErrConflict
	}
	return errors.Wrap(err, op)
}

func readMetrics(ctx context.Context, tx pgx.Tx, userID string) (user.Metrics, error) {
	var m user.Metrics
	err := tx.QueryRow(ctx, userMetricsSQL, userID).Scan(&m.Hours, &m.TotalAmount)
	if err != nil {
		// Absent users have zero metrics; they can still redeem
		// festival coupons.
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Metrics{}, nil
		}
		return user.Metrics{}, err
	}
	return m, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c              coupon.Coupon
		couponType     string
		discountType   string
		threshold      *decimal.Decimal
		minOrderAmount *decimal.Decimal
		maxDiscount    *decimal.Decimal
	)
	err := row.Scan(
		&c.Ref.Scope, &c.Ref.ID, &couponType, &c.Title, &c.Code, &c.Description,
		&c.IsActive, &discountType, &c.DiscountValue, &threshold,
		&c.ValidFrom, &c.ValidUntil, &c.UsageLimit, &c.UsedCount,
		&minOrderAmount, &maxDiscount,
	)
	c.Type = coupon.Type(couponType)
	c.DiscountType = coupon.DiscountType(discountType)
	c.Threshold = threshold
	c.MinOrderAmount = minOrderAmount
	c.MaxDiscount = maxDiscount
	return c, err
}
