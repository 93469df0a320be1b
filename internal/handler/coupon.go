package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/easymade/booking-api/internal/domain/coupon"
)

// listCoupons returns the coupons the customer could redeem right now.
//
// GET /api/coupons?userId=u1&bookingHours=4&orderAmount=250
func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	ec := coupon.Context{}
	if v := q.Get("bookingHours"); v != "" {
		hours, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bookingHours")
			return
		}
		ec.BookingHours = hours
	}
	if v := q.Get("orderAmount"); v != "" {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid orderAmount")
			return
		}
		ec.OrderAmount = amount
	}

	coupons, err := h.coupons.ListAvailable(r.Context(), userID, ec)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range coupons {
			encodeCoupon(e, &coupons[i])
		}
		e.ArrEnd()
	})
}

// applyRequest is the body of POST /api/coupons/apply.
type applyRequest struct {
	Code         string
	UserID       string
	BookingHours decimal.Decimal
	OrderAmount  decimal.Decimal
}

// applyCoupon redeems a coupon code for a customer, at most once.
//
// The outcome is always a structured result body. Success responds 200;
// business-rule rejections respond 422 and transient conflicts 409 with
// retryable=true so clients know a repeat may succeed.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			req.Code = v
			return err
		case "userId":
			v, err := d.Str()
			req.UserID = v
			return err
		case "bookingHours":
			v, err := readDecimal(d)
			req.BookingHours = v
			return err
		case "orderAmount":
			v, err := readDecimal(d)
			req.OrderAmount = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "code and userId are required")
		return
	}

	res, err := h.coupons.Apply(r.Context(), req.Code, req.UserID, coupon.Context{
		BookingHours: req.BookingHours,
		OrderAmount:  req.OrderAmount,
	})
	if err != nil {
		internalError(w, r, err)
		return
	}

	status := http.StatusOK
	switch {
	case res.Retryable:
		status = http.StatusConflict
	case !res.Success:
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(res.Success)
		e.FieldStart("message")
		e.Str(res.Message)
		if res.Success {
			e.FieldStart("discount")
			encodeDecimal(e, res.Discount)
		}
		if res.Retryable {
			e.FieldStart("retryable")
			e.Bool(true)
		}
		e.ObjEnd()
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.Ref.ID)
	e.FieldStart("scope")
	e.Str(c.Ref.Scope)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("title")
	e.Str(c.Title)
	if c.Description != "" {
		e.FieldStart("description")
		e.Str(c.Description)
	}
	e.FieldStart("type")
	e.Str(string(c.Type))
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	encodeDecimal(e, c.DiscountValue)
	if c.Threshold != nil {
		e.FieldStart("threshold")
		encodeDecimal(e, *c.Threshold)
	}
	if c.MinOrderAmount != nil {
		e.FieldStart("minOrderAmount")
		encodeDecimal(e, *c.MinOrderAmount)
	}
	if c.MaxDiscount != nil {
		e.FieldStart("maxDiscount")
		encodeDecimal(e, *c.MaxDiscount)
	}
	e.FieldStart("validFrom")
	encodeTime(e, c.ValidFrom)
	e.FieldStart("validUntil")
	encodeTime(e, c.ValidUntil)
	e.ObjEnd()
}
