package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type selects the eligibility predicate a coupon is evaluated with.
type Type string

const (
	// TypeTotalHours requires the customer's lifetime booked hours to
	// reach the coupon threshold.
	TypeTotalHours Type = "totalHoursThreshold"
	// TypeTotalAmount requires the customer's lifetime spend to reach
	// the coupon threshold.
	TypeTotalAmount Type = "totalAmountThreshold"
	// TypeFestivalAll is open to every customer within the validity window.
	TypeFestivalAll Type = "festivalAll"
	// TypeSingleBookingHours requires the candidate booking itself to
	// reach the coupon threshold in hours.
	TypeSingleBookingHours Type = "singleBookingHoursThreshold"
)

// DiscountType enumerates the supported discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order amount,
	// optionally capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount regardless of order size.
	// The booking composer floors the final total at zero.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when a code does not resolve to any catalog entry.
	ErrNotFound = errors.New("coupon not found")
	// ErrAlreadyApplied is returned when the customer already holds a
	// committed redemption record for the coupon.
	ErrAlreadyApplied = errors.New("coupon already applied by user")
	// ErrNotAvailable is returned when the coupon fails the
	// active/window/limit check.
	ErrNotAvailable = errors.New("coupon not available")
	// ErrNotEligible is returned when the customer or booking fails the
	// coupon's eligibility predicate.
	ErrNotEligible = errors.New("user not eligible for coupon")
	// ErrLimitReached is returned by the in-transaction usage cap re-check.
	ErrLimitReached = errors.New("coupon usage limit reached")
	// ErrConflict is returned when the storage transaction could not
	// commit due to a concurrent modification. Safe to retry.
	ErrConflict = errors.New("concurrent coupon update")
)

// Ref locates a coupon document within the catalog. Coupons are nested
// under arbitrary parent scopes, so the ID alone is not a full address.
type Ref struct {
	Scope string
	ID    string
}

// Coupon is a single catalog entry. The definition fields are immutable;
// only UsedCount changes, and only through Repository.Redeem.
type Coupon struct {
	Ref         Ref
	Type        Type
	Title       string
	Code        string
	Description string
	IsActive    bool

	DiscountType  DiscountType
	DiscountValue decimal.Decimal

	// Threshold is required for the three threshold-based types and
	// ignored otherwise.
	Threshold *decimal.Decimal

	ValidFrom  time.Time
	ValidUntil time.Time

	UsageLimit int
	UsedCount  int

	MinOrderAmount *decimal.Decimal
	MaxDiscount    *decimal.Decimal
}

// Context carries the candidate booking's parameters for eligibility
// evaluation. Zero values mean "not provided".
type Context struct {
	BookingHours decimal.Decimal
	OrderAmount  decimal.Decimal
}

// Redemption is the committed per-user application record for a coupon.
type Redemption struct {
	UserID    string
	AppliedAt time.Time
	Discount  decimal.Decimal
}

// Repository provides catalog access and the atomic redemption primitive.
//
// Redeem must execute as a single transaction: re-read the coupon, the
// per-user redemption record, and the user metrics; re-validate
// availability, eligibility, and the usage cap against that state; then
// increment the usage counter and write the redemption record together.
// Any failure aborts with no partial writes. Business-rule aborts map to
// the sentinel errors above; conflicting commits map to ErrConflict.
type Repository interface {
	// ListAll returns every coupon across all catalog scopes.
	ListAll(ctx context.Context) ([]Coupon, error)
	// FindByCode returns the first coupon matching code, ordered by
	// (scope, id) for a deterministic tie-break. ErrNotFound when absent.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// HasApplied reports whether userID holds a committed redemption
	// record for the referenced coupon.
	HasApplied(ctx context.Context, ref Ref, userID string) (bool, error)
	// Redeem atomically validates and records a redemption, returning
	// the committed record.
	Redeem(ctx context.Context, ref Ref, userID string, ec Context, now time.Time) (*Redemption, error)
}
