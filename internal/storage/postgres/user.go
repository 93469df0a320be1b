package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easymade/booking-api/internal/domain/user"
)

var _ user.Store = (*UserStore)(nil)

// UserStore implements user.Store backed by PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a UserStore that uses the given pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Email returns the customer's email address.
func (s *UserStore) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errors.Errorf("no such user %q", userID)
		}
		return "", errors.Wrapf(err, "read email for user %q", userID)
	}
	return email, nil
}

// Metrics returns the cumulative metrics for the given customer. Unknown
// customers yield zero metrics.
func (s *UserStore) Metrics(ctx context.Context, userID string) (user.Metrics, error) {
	var m user.Metrics
	err := s.pool.QueryRow(ctx, userMetricsSQL, userID).Scan(&m.Hours, &m.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Metrics{}, nil
		}
		return user.Metrics{}, errors.Wrapf(err, "read metrics for user %q", userID)
	}
	return m, nil
}
