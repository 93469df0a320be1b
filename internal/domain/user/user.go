// Package user holds the customer metrics read by coupon eligibility.
package user

import (
	"context"

	"github.com/shopspring/decimal"
)

// Metrics are a customer's cumulative lifetime totals, maintained by the
// booking and payment flow.
type Metrics struct {
	// Hours is the total booked hours across all completed bookings.
	Hours decimal.Decimal
	// TotalAmount is the total spend across all completed bookings.
	TotalAmount decimal.Decimal
}

// Store reads customer metrics. Implementations return zero metrics for
// unknown customers rather than an error; a brand-new customer is simply
// one who has accumulated nothing yet.
type Store interface {
	Metrics(ctx context.Context, userID string) (Metrics, error)
}
