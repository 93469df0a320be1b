// Package payment creates card-gateway payment orders for pay-now
// bookings. Settlement and verification happen outside this service.
package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"

	"github.com/easymade/booking-api/internal/domain/booking"
)

var subunits = decimal.NewFromInt(100)

var _ booking.PaymentProvider = (*RazorpayProvider)(nil)

// RazorpayProvider implements booking.PaymentProvider on the Razorpay
// Orders API.
type RazorpayProvider struct {
	client *razorpay.Client
}

// NewRazorpayProvider creates a provider with the given API credentials.
func NewRazorpayProvider(keyID, keySecret string) *RazorpayProvider {
	return &RazorpayProvider{client: razorpay.NewClient(keyID, keySecret)}
}

// CreateOrder creates a gateway order for the booking's final total and
// returns the gateway order id. Amounts are sent in the currency's
// smallest unit, as the Orders API requires.
func (p *RazorpayProvider) CreateOrder(
	_ context.Context,
	bookingID string,
	amount decimal.Decimal,
	currency string,
) (string, error) {
	data := map[string]interface{}{
		"amount":   amount.Mul(subunits).Round(0).IntPart(),
		"currency": strings.ToUpper(currency),
		"receipt":  bookingID,
	}

	order, err := p.client.Order.Create(data, nil)
	if err != nil {
		return "", errors.Wrapf(err, "create payment order for booking %s", bookingID)
	}

	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", errors.New("payment order response missing id")
	}
	return id, nil
}
