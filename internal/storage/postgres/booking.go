package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easymade/booking-api/internal/domain/booking"
)

const (
	insertBookingSQL = `INSERT INTO bookings
		(id, user_id, service_date, time_slot, hours, professionals, materials,
		 amount, coupon_code, discount, final_total, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getBookingSQL = `SELECT id, user_id, service_date, time_slot, hours,
		professionals, materials, amount, coupon_code, discount, final_total,
		payment_status, payment_order_id, created_at
		FROM bookings WHERE id = $1`

	setPaymentOrderSQL = `UPDATE bookings SET payment_order_id = $2 WHERE id = $1`
)

var _ booking.Repository = (*BookingRepository)(nil)

// BookingRepository implements booking.Repository backed by PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository returns a BookingRepository that uses the given pool.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	_, err := r.pool.Exec(ctx, insertBookingSQL,
		b.ID, b.UserID, b.Date, b.TimeSlot, b.Hours, b.Professionals,
		b.Materials, b.Amount, b.CouponCode, b.Discount, b.FinalTotal,
		string(b.PaymentStatus), b.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create booking %q", b.ID)
	}
	return nil
}

// Get returns a booking by id, or booking.ErrNotFound.
func (r *BookingRepository) Get(ctx context.Context, id string) (*booking.Booking, error) {
	var (
		b      booking.Booking
		status string
	)
	err := r.pool.QueryRow(ctx, getBookingSQL, id).Scan(
		&b.ID, &b.UserID, &b.Date, &b.TimeSlot, &b.Hours,
		&b.Professionals, &b.Materials, &b.Amount, &b.CouponCode,
		&b.Discount, &b.FinalTotal, &status, &b.PaymentOrderID, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read booking %q", id)
	}
	b.PaymentStatus = booking.PaymentStatus(status)
	return &b, nil
}

// SetPaymentOrder attaches a gateway order reference to a booking.
func (r *BookingRepository) SetPaymentOrder(ctx context.Context, id, orderID string) error {
	tag, err := r.pool.Exec(ctx, setPaymentOrderSQL, id, orderID)
	if err != nil {
		return errors.Wrapf(err, "attach payment order to booking %q", id)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}
