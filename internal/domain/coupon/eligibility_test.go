package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/easymade/booking-api/internal/domain/user"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestIsAvailable(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	inside := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	base := Coupon{
		IsActive:   true,
		ValidFrom:  from,
		ValidUntil: until,
		UsageLimit: 100,
		UsedCount:  5,
	}

	tests := []struct {
		name   string
		mutate func(*Coupon)
		now    time.Time
		want   bool
	}{
		{name: "inside window with capacity", now: inside, want: true},
		{
			name:   "inactive kill-switch overrides window",
			mutate: func(c *Coupon) { c.IsActive = false },
			now:    inside,
			want:   false,
		},
		{name: "available at exact start", now: from, want: true},
		{name: "available at exact end", now: until, want: true},
		{name: "unavailable 1ms before start", now: from.Add(-time.Millisecond), want: false},
		{name: "unavailable 1ms after end", now: until.Add(time.Millisecond), want: false},
		{
			name:   "zero usage limit is permanently unavailable",
			mutate: func(c *Coupon) { c.UsageLimit = 0 },
			now:    inside,
			want:   false,
		},
		{
			name:   "negative usage limit is permanently unavailable",
			mutate: func(c *Coupon) { c.UsageLimit = -1 },
			now:    inside,
			want:   false,
		},
		{
			name:   "exhausted usage",
			mutate: func(c *Coupon) { c.UsedCount = 100 },
			now:    inside,
			want:   false,
		},
		{
			name:   "one slot left",
			mutate: func(c *Coupon) { c.UsedCount = 99 },
			now:    inside,
			want:   true,
		},
		{
			name:   "missing start bound",
			mutate: func(c *Coupon) { c.ValidFrom = time.Time{} },
			now:    inside,
			want:   false,
		},
		{
			name:   "missing end bound",
			mutate: func(c *Coupon) { c.ValidUntil = time.Time{} },
			now:    inside,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			assert.Equal(t, tt.want, IsAvailable(c, tt.now))
		})
	}
}

func TestIsEligibleForUser(t *testing.T) {
	tests := []struct {
		name    string
		coupon  Coupon
		metrics user.Metrics
		ec      Context
		want    bool
	}{
		{
			name:    "total hours at threshold",
			coupon:  Coupon{Type: TypeTotalHours, Threshold: decp("10")},
			metrics: user.Metrics{Hours: dec("10")},
			want:    true,
		},
		{
			name:    "total hours just below threshold",
			coupon:  Coupon{Type: TypeTotalHours, Threshold: decp("10")},
			metrics: user.Metrics{Hours: dec("9.999")},
			want:    false,
		},
		{
			name:   "total hours without threshold fails closed",
			coupon: Coupon{Type: TypeTotalHours},
			metrics: user.Metrics{
				Hours: dec("1000"),
			},
			want: false,
		},
		{
			name:    "total amount at threshold",
			coupon:  Coupon{Type: TypeTotalAmount, Threshold: decp("500")},
			metrics: user.Metrics{TotalAmount: dec("500")},
			want:    true,
		},
		{
			name:    "total amount below threshold",
			coupon:  Coupon{Type: TypeTotalAmount, Threshold: decp("500")},
			metrics: user.Metrics{TotalAmount: dec("499.99")},
			want:    false,
		},
		{
			name:   "single booking hours meets threshold",
			coupon: Coupon{Type: TypeSingleBookingHours, Threshold: decp("4")},
			ec:     Context{BookingHours: dec("4")},
			want:   true,
		},
		{
			name:   "single booking hours below threshold",
			coupon: Coupon{Type: TypeSingleBookingHours, Threshold: decp("4")},
			ec:     Context{BookingHours: dec("3.5")},
			want:   false,
		},
		{
			name:   "festival open to everyone",
			coupon: Coupon{Type: TypeFestivalAll},
			want:   true,
		},
		{
			name:   "min order guard blocks festival coupon",
			coupon: Coupon{Type: TypeFestivalAll, MinOrderAmount: decp("100")},
			ec:     Context{OrderAmount: dec("99")},
			want:   false,
		},
		{
			name:   "min order guard passes at exact amount",
			coupon: Coupon{Type: TypeFestivalAll, MinOrderAmount: decp("100")},
			ec:     Context{OrderAmount: dec("100")},
			want:   true,
		},
		{
			name:   "min order guard with absent order amount defaults to zero",
			coupon: Coupon{Type: TypeFestivalAll, MinOrderAmount: decp("1")},
			want:   false,
		},
		{
			name:    "unknown type fails closed",
			coupon:  Coupon{Type: Type("buyOneGetOne"), Threshold: decp("1")},
			metrics: user.Metrics{Hours: dec("100"), TotalAmount: dec("10000")},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligibleForUser(tt.coupon, tt.metrics, tt.ec))
		})
	}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name        string
		coupon      Coupon
		orderAmount decimal.Decimal
		want        decimal.Decimal
	}{
		{
			name:        "percentage",
			coupon:      Coupon{DiscountType: DiscountPercentage, DiscountValue: dec("10")},
			orderAmount: dec("200"),
			want:        dec("20"),
		},
		{
			name: "percentage clamped to max discount",
			coupon: Coupon{
				DiscountType:  DiscountPercentage,
				DiscountValue: dec("50"),
				MaxDiscount:   decp("20"),
			},
			orderAmount: dec("100"),
			want:        dec("20"),
		},
		{
			name: "percentage below max discount is not clamped",
			coupon: Coupon{
				DiscountType:  DiscountPercentage,
				DiscountValue: dec("10"),
				MaxDiscount:   decp("20"),
			},
			orderAmount: dec("100"),
			want:        dec("10"),
		},
		{
			name:        "fixed discount ignores order amount",
			coupon:      Coupon{DiscountType: DiscountFixed, DiscountValue: dec("15")},
			orderAmount: dec("10"),
			want:        dec("15"),
		},
		{
			name: "fixed discount ignores max discount",
			coupon: Coupon{
				DiscountType:  DiscountFixed,
				DiscountValue: dec("30"),
				MaxDiscount:   decp("20"),
			},
			orderAmount: dec("100"),
			want:        dec("30"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(tt.coupon, tt.orderAmount)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}
