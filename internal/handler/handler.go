// Package handler exposes the booking API over HTTP with JSON bodies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/easymade/booking-api/internal/domain/booking"
	"github.com/easymade/booking-api/internal/domain/coupon"
)

// maxBodyBytes bounds request body size.
const maxBodyBytes = 1 << 20

// CouponService lists redeemable coupons and performs redemptions.
type CouponService interface {
	ListAvailable(ctx context.Context, userID string, ec coupon.Context) ([]coupon.Coupon, error)
	Apply(ctx context.Context, code, userID string, ec coupon.Context) (*coupon.ApplyResult, error)
}

// BookingService composes and retrieves bookings.
type BookingService interface {
	Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	Get(ctx context.Context, id string) (*booking.Booking, error)
}

// Handler routes API requests to the domain services.
type Handler struct {
	coupons  CouponService
	bookings BookingService
}

// New constructs a Handler with the required domain services.
func New(coupons CouponService, bookings BookingService) *Handler {
	return &Handler{coupons: coupons, bookings: bookings}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/coupons", h.listCoupons)
	mux.HandleFunc("POST /api/coupons/apply", h.applyCoupon)
	mux.HandleFunc("POST /api/bookings", h.createBooking)
	mux.HandleFunc("GET /api/bookings/{id}", h.getBooking)
}

// writeJSON encodes a response body built by fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError sends the standard {code, message} error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// internalError logs err and responds with a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody parses the request body as a JSON object, dispatching each
// field to fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(http.MaxBytesReader(nil, r.Body, maxBodyBytes), 4096)
	return d.Obj(fn)
}

// readDecimal reads a JSON number (or numeric string) as a decimal.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(n))
}

// encodeDecimal writes v as a raw JSON number.
func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.String())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}
