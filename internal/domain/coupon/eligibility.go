package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/easymade/booking-api/internal/domain/user"
)

var hundred = decimal.NewFromInt(100)

// IsAvailable reports whether the coupon can be redeemed at all at the
// given instant: active, inside its validity window (inclusive on both
// bounds), and with usage capacity left. A coupon with a non-positive
// usage limit or a missing validity bound is never available.
func IsAvailable(c Coupon, now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom.IsZero() || c.ValidUntil.IsZero() {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.UsageLimit <= 0 {
		return false
	}
	return c.UsedCount < c.UsageLimit
}

// IsEligibleForUser reports whether the customer and candidate booking
// satisfy the coupon's eligibility predicate. Unknown coupon types are
// ineligible, keeping the evaluator total.
func IsEligibleForUser(c Coupon, m user.Metrics, ec Context) bool {
	if c.MinOrderAmount != nil && ec.OrderAmount.LessThan(*c.MinOrderAmount) {
		return false
	}

	switch c.Type {
	case TypeTotalHours:
		return c.Threshold != nil && m.Hours.GreaterThanOrEqual(*c.Threshold)
	case TypeTotalAmount:
		return c.Threshold != nil && m.TotalAmount.GreaterThanOrEqual(*c.Threshold)
	case TypeSingleBookingHours:
		return c.Threshold != nil && ec.BookingHours.GreaterThanOrEqual(*c.Threshold)
	case TypeFestivalAll:
		return true
	default:
		return false
	}
}

// ComputeDiscount returns the discount amount the coupon grants on the
// given order amount. Percentage discounts are capped at MaxDiscount when
// present; fixed discounts are returned as-is, even when they exceed the
// order amount. The caller floors the final total at zero.
func ComputeDiscount(c Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	if c.DiscountType == DiscountPercentage {
		d := orderAmount.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil && d.GreaterThan(*c.MaxDiscount) {
			d = *c.MaxDiscount
		}
		return d
	}
	return c.DiscountValue
}
