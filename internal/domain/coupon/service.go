package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/easymade/booking-api/internal/domain/user"
)

// ApplyResult is the structured outcome of a redemption attempt. Business
// rule failures are reported here with Success=false rather than as
// errors; only storage faults surface as errors.
type ApplyResult struct {
	Success  bool
	Message  string
	Discount decimal.Decimal
	// Retryable marks failures caused by concurrent commits, where the
	// same request may succeed if repeated. Business-rule failures are
	// never retryable.
	Retryable bool
}

// Service coordinates coupon listing and redemption. Listing is an
// advisory read; only Apply's in-transaction re-validation is
// authoritative.
type Service struct {
	coupons Repository
	users   user.Store
	now     func() time.Time
}

// NewService creates a Service backed by the given catalog and metrics store.
func NewService(coupons Repository, users user.Store) *Service {
	return &Service{coupons: coupons, users: users, now: time.Now}
}

// ListAvailable returns the coupons the customer could redeem right now
// for a booking with the given parameters: available, eligible, and not
// yet applied by this customer. Order is not significant.
//
// The result carries no guarantee: a listed coupon can still be rejected
// at apply time if the catalog changed in between.
func (s *Service) ListAvailable(ctx context.Context, userID string, ec Context) ([]Coupon, error) {
	var (
		metrics user.Metrics
		all     []Coupon
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.users.Metrics(gctx, userID)
		if err != nil {
			return errors.Wrap(err, "fetch user metrics")
		}
		metrics = m
		return nil
	})
	g.Go(func() error {
		cs, err := s.coupons.ListAll(gctx)
		if err != nil {
			return errors.Wrap(err, "fetch coupon catalog")
		}
		all = cs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Coupon, 0, len(all))
	for _, c := range all {
		if !IsAvailable(c, now) || !IsEligibleForUser(c, metrics, ec) {
			continue
		}
		applied, err := s.coupons.HasApplied(ctx, c.Ref, userID)
		if err != nil {
			return nil, errors.Wrapf(err, "check redemption for coupon %s", c.Ref.ID)
		}
		if !applied {
			out = append(out, c)
		}
	}
	return out, nil
}

// Apply redeems the coupon identified by code for the customer, at most
// once. The lookup here is only to resolve the code to a catalog entry;
// every check that decides the outcome re-runs inside the repository
// transaction against freshly read state, so concurrent attempts cannot
// both succeed and the usage cap cannot be exceeded.
func (s *Service) Apply(ctx context.Context, code, userID string, ec Context) (*ApplyResult, error) {
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ApplyResult{Message: "Coupon not found"}, nil
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	red, err := s.coupons.Redeem(ctx, c.Ref, userID, ec, s.now())
	if err != nil {
		if res := failureResult(err); res != nil {
			return res, nil
		}
		return nil, errors.Wrapf(err, "redeem coupon %q", code)
	}

	return &ApplyResult{
		Success:  true,
		Message:  "Coupon applied successfully",
		Discount: red.Discount,
	}, nil
}

// failureResult maps a business-rule redemption error to its user-facing
// result, or nil when the error is a storage fault that should propagate.
func failureResult(err error) *ApplyResult {
	switch {
	case errors.Is(err, ErrNotFound):
		return &ApplyResult{Message: "Coupon not found"}
	case errors.Is(err, ErrAlreadyApplied):
		return &ApplyResult{Message: "Coupon already applied by user"}
	case errors.Is(err, ErrNotAvailable):
		return &ApplyResult{Message: "Coupon not available"}
	case errors.Is(err, ErrNotEligible):
		return &ApplyResult{Message: "User not eligible for coupon"}
	case errors.Is(err, ErrLimitReached):
		return &ApplyResult{Message: "Coupon usage limit reached"}
	case errors.Is(err, ErrConflict):
		return &ApplyResult{Message: "Coupon could not be applied, please try again", Retryable: true}
	default:
		return nil
	}
}
