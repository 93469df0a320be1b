// Package notify delivers booking-confirmation emails. The coupon engine
// never calls this directly; the booking composer fires it after commit.
package notify

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	gomail "gopkg.in/gomail.v2"

	"github.com/easymade/booking-api/internal/domain/booking"
)

// UserEmails resolves a customer id to their email address.
type UserEmails interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Config holds SMTP settings for the mailer.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

var _ booking.Notifier = (*Mailer)(nil)

// Mailer sends booking confirmations over SMTP to the customer and,
// when configured, a copy to the operations inbox.
type Mailer struct {
	cfg    Config
	dialer *gomail.Dialer
	users  UserEmails
}

// NewMailer creates a Mailer with the given SMTP configuration.
func NewMailer(cfg Config, users UserEmails) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		users:  users,
	}
}

// BookingConfirmation emails the booking summary to the customer, with a
// copy to the admin inbox when one is configured.
func (m *Mailer) BookingConfirmation(ctx context.Context, b *booking.Booking) error {
	to, err := m.users.Email(ctx, b.UserID)
	if err != nil {
		return errors.Wrap(err, "resolve customer email")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	recipients := []string{to}
	if m.cfg.AdminEmail != "" {
		recipients = append(recipients, m.cfg.AdminEmail)
	}
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("Booking confirmed: %s %s", b.Date.Format("2006-01-02"), b.TimeSlot))
	msg.SetBody("text/plain", confirmationBody(b))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "send confirmation email")
	}
	return nil
}

func confirmationBody(b *booking.Booking) string {
	status := "Payment due"
	if b.PaymentStatus == booking.StatusPaid {
		status = "Paid"
	}
	body := fmt.Sprintf(
		"Your home cleaning is booked.\n\n"+
			"Booking ID: %s\n"+
			"Date: %s at %s\n"+
			"Hours: %s, professionals: %d\n"+
			"Cleaning materials: %s\n"+
			"Amount: %s\n",
		b.ID,
		b.Date.Format("Monday, 2 January 2006"), b.TimeSlot,
		b.Hours, b.Professionals,
		yesNo(b.Materials),
		b.Amount,
	)
	if b.CouponCode != "" {
		body += fmt.Sprintf("Coupon %s: -%s\n", b.CouponCode, b.Discount)
	}
	body += fmt.Sprintf("Total: %s\nStatus: %s\n", b.FinalTotal, status)
	return body
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
