package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/easymade/booking-api/internal/domain/booking"
)

// createBooking composes a new booking, optionally redeeming a coupon and
// creating an up-front payment order.
//
// POST /api/bookings
func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var (
		req     booking.CreateRequest
		dateErr error
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "userId":
			v, err := d.Str()
			req.UserID = v
			return err
		case "date":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.Date, dateErr = time.Parse(time.RFC3339, v)
			return nil
		case "timeSlot":
			v, err := d.Str()
			req.TimeSlot = v
			return err
		case "hours":
			v, err := readDecimal(d)
			req.Hours = v
			return err
		case "professionals":
			v, err := d.Int()
			req.Professionals = v
			return err
		case "materials":
			v, err := d.Bool()
			req.Materials = v
			return err
		case "amount":
			v, err := readDecimal(d)
			req.Amount = v
			return err
		case "couponCode":
			v, err := d.Str()
			req.CouponCode = v
			return err
		case "payNow":
			v, err := d.Bool()
			req.PayNow = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dateErr != nil {
		writeError(w, http.StatusBadRequest, "date must be RFC 3339")
		return
	}

	b, err := h.bookings.Create(r.Context(), req)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeBooking(e, b)
	})
}

// getBooking returns a booking by id.
//
// GET /api/bookings/{id}
func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeBooking(e, b)
	})
}

// writeBookingError maps booking composition failures to HTTP responses.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		profErr   *booking.InvalidProfessionalsError
		couponErr *booking.CouponRejectedError
	)
	switch {
	case errors.Is(err, booking.ErrMissingUser),
		errors.Is(err, booking.ErrMissingSchedule),
		errors.Is(err, booking.ErrInvalidHours),
		errors.Is(err, booking.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &profErr):
		writeError(w, http.StatusBadRequest, profErr.Error())
	case errors.As(err, &couponErr):
		status := http.StatusUnprocessableEntity
		if couponErr.Retryable {
			status = http.StatusConflict
		}
		writeError(w, status, couponErr.Message)
	default:
		internalError(w, r, err)
	}
}

func encodeBooking(e *jx.Encoder, b *booking.Booking) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(b.ID)
	e.FieldStart("userId")
	e.Str(b.UserID)
	e.FieldStart("date")
	encodeTime(e, b.Date)
	e.FieldStart("timeSlot")
	e.Str(b.TimeSlot)
	e.FieldStart("hours")
	encodeDecimal(e, b.Hours)
	e.FieldStart("professionals")
	e.Int(b.Professionals)
	e.FieldStart("materials")
	e.Bool(b.Materials)
	e.FieldStart("amount")
	encodeDecimal(e, b.Amount)
	if b.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(b.CouponCode)
		e.FieldStart("discount")
		encodeDecimal(e, b.Discount)
	}
	e.FieldStart("finalTotal")
	encodeDecimal(e, b.FinalTotal)
	e.FieldStart("paymentStatus")
	e.Str(string(b.PaymentStatus))
	if b.PaymentOrderID != "" {
		e.FieldStart("paymentOrderId")
		e.Str(b.PaymentOrderID)
	}
	e.FieldStart("createdAt")
	encodeTime(e, b.CreatedAt)
	e.ObjEnd()
}
