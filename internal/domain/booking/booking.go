// Package booking composes home-cleaning bookings: service parameters,
// coupon application, final pricing, payment-order creation, and the
// confirmation notification.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks whether a booking has been paid up front or is
// deferred to pay-later.
type PaymentStatus string

const (
	// StatusDue marks a booking whose payment is deferred or pending.
	StatusDue PaymentStatus = "due"
	// StatusPaid marks a booking settled through the card gateway.
	StatusPaid PaymentStatus = "paid"
)

// Booking is a confirmed home-cleaning appointment.
type Booking struct {
	ID            string
	UserID        string
	Date          time.Time
	TimeSlot      string
	Hours         decimal.Decimal
	Professionals int
	Materials     bool

	// Amount is the price before any coupon discount.
	Amount     decimal.Decimal
	CouponCode string
	Discount   decimal.Decimal
	FinalTotal decimal.Decimal

	PaymentStatus  PaymentStatus
	PaymentOrderID string
	CreatedAt      time.Time
}

// Repository persists bookings.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	// SetPaymentOrder attaches a gateway order reference to a booking.
	SetPaymentOrder(ctx context.Context, id, orderID string) error
}

var (
	// ErrNotFound is returned when a booking id does not exist.
	ErrNotFound = errors.New("booking not found")

	ErrMissingUser     = errors.New("user id required")
	ErrMissingSchedule = errors.New("date and time slot required")
	ErrInvalidHours    = errors.New("hours must be greater than 0")
	ErrInvalidAmount   = errors.New("amount must be greater than 0")
)

// InvalidProfessionalsError indicates a professionals count outside the
// bookable range.
type InvalidProfessionalsError struct {
	Count int
}

func (e *InvalidProfessionalsError) Error() string {
	return fmt.Sprintf("professionals count %d out of range [1, %d]", e.Count, MaxProfessionals)
}

// CouponRejectedError indicates the requested coupon could not be
// redeemed. Message is user-facing; Retryable marks transient conflicts.
type CouponRejectedError struct {
	Message   string
	Retryable bool
}

func (e *CouponRejectedError) Error() string {
	return e.Message
}

// MaxProfessionals is the largest crew size a single booking may request.
const MaxProfessionals = 4
