package booking

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/easymade/booking-api/internal/domain/coupon"
)

// CouponApplier redeems a coupon code for a user, at most once.
type CouponApplier interface {
	Apply(ctx context.Context, code, userID string, ec coupon.Context) (*coupon.ApplyResult, error)
}

// PaymentProvider creates payment orders with the card gateway.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, bookingID string, amount decimal.Decimal, currency string) (string, error)
}

// Notifier delivers booking confirmations. Failures never fail the booking.
type Notifier interface {
	BookingConfirmation(ctx context.Context, b *Booking) error
}

// CreateRequest holds the input for composing a booking.
type CreateRequest struct {
	UserID        string
	Date          time.Time
	TimeSlot      string
	Hours         decimal.Decimal
	Professionals int
	Materials     bool
	Amount        decimal.Decimal
	CouponCode    string
	// PayNow requests an up-front card payment; otherwise the booking is
	// recorded as pay-later.
	PayNow bool
}

// Service encapsulates booking composition business logic.
type Service struct {
	bookings Repository
	coupons  CouponApplier
	payments PaymentProvider
	notifier Notifier
	currency string
	now      func() time.Time
}

// NewService creates a booking Service with the required dependencies.
func NewService(
	bookings Repository,
	coupons CouponApplier,
	payments PaymentProvider,
	notifier Notifier,
	currency string,
) *Service {
	return &Service{
		bookings: bookings,
		coupons:  coupons,
		payments: payments,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
	}
}

// Create validates the request, redeems the optional coupon, computes the
// final total floored at zero, persists the booking, and kicks off the
// payment order and confirmation notification.
//
// Payment-order creation and notification are external boundaries:
// failures there are logged and leave the booking intact (status stays
// "due" so payment can be retried).
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	discount := decimal.Zero
	if req.CouponCode != "" {
		res, err := s.coupons.Apply(ctx, req.CouponCode, req.UserID, coupon.Context{
			BookingHours: req.Hours,
			OrderAmount:  req.Amount,
		})
		if err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
		if !res.Success {
			return nil, &CouponRejectedError{Message: res.Message, Retryable: res.Retryable}
		}
		discount = res.Discount
	}

	// Fixed discounts may exceed the order amount; the total never goes
	// below zero.
	total := req.Amount.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	b := &Booking{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Date:          req.Date,
		TimeSlot:      req.TimeSlot,
		Hours:         req.Hours,
		Professionals: req.Professionals,
		Materials:     req.Materials,
		Amount:        req.Amount,
		CouponCode:    req.CouponCode,
		Discount:      discount.Round(2),
		FinalTotal:    total.Round(2),
		PaymentStatus: StatusDue,
		CreatedAt:     s.now(),
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, errors.Wrap(err, "create booking")
	}

	lg := zctx.From(ctx)

	if req.PayNow {
		orderID, err := s.payments.CreateOrder(ctx, b.ID, b.FinalTotal, s.currency)
		if err != nil {
			lg.Error("Payment order creation failed",
				zap.String("booking_id", b.ID), zap.Error(err))
		} else {
			b.PaymentOrderID = orderID
			if err := s.bookings.SetPaymentOrder(ctx, b.ID, orderID); err != nil {
				lg.Error("Attach payment order failed",
					zap.String("booking_id", b.ID), zap.Error(err))
			}
		}
	}

	if err := s.notifier.BookingConfirmation(ctx, b); err != nil {
		lg.Error("Booking confirmation failed",
			zap.String("booking_id", b.ID), zap.Error(err))
	}

	return b, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.bookings.Get(ctx, id)
}

func validate(req CreateRequest) error {
	if req.UserID == "" {
		return ErrMissingUser
	}
	if req.Date.IsZero() || req.TimeSlot == "" {
		return ErrMissingSchedule
	}
	if !req.Hours.IsPositive() {
		return ErrInvalidHours
	}
	if req.Professionals < 1 || req.Professionals > MaxProfessionals {
		return &InvalidProfessionalsError{Count: req.Professionals}
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
