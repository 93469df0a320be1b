// Package app wires the booking API together: configuration, storage,
// domain services, HTTP transport, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/easymade/booking-api/internal/domain/booking"
	"github.com/easymade/booking-api/internal/domain/coupon"
	"github.com/easymade/booking-api/internal/handler"
	"github.com/easymade/booking-api/internal/notify"
	"github.com/easymade/booking-api/internal/payment"
	"github.com/easymade/booking-api/internal/storage/postgres"
	"github.com/easymade/booking-api/pkg/health"
	"github.com/easymade/booking-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health probes.
	healthSvc := health.New(5 * time.Second)
	healthSvc.AddReadiness("postgres", health.PingCheck(pool))
	healthSvc.AddLiveness("goroutines", health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	userStore := postgres.NewUserStore(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)

	// Domain services.
	couponSvc := coupon.NewService(couponRepo, userStore)

	var notifier booking.Notifier = nopNotifier{}
	if cfg.Notify.SMTPHost != "" {
		notifier = notify.NewMailer(notify.Config{
			Host:       cfg.Notify.SMTPHost,
			Port:       cfg.Notify.SMTPPort,
			Username:   cfg.Notify.SMTPUser,
			Password:   cfg.Notify.SMTPPass,
			From:       cfg.Notify.From,
			AdminEmail: cfg.Notify.AdminEmail,
		}, userStore)
	} else {
		lg.Info("SMTP host not set, confirmation emails disabled")
	}

	var payments booking.PaymentProvider = disabledPayments{}
	if cfg.Razorpay.KeyID != "" {
		payments = payment.NewRazorpayProvider(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	} else {
		lg.Info("Razorpay keys not set, pay-now orders disabled")
	}

	bookingSvc := booking.NewService(bookingRepo, couponSvc, payments, notifier, cfg.Currency)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveHandler())
	mux.HandleFunc("/readyz", healthSvc.ReadyHandler())
	handler.New(couponSvc, bookingSvc).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("booking-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// nopNotifier is used when SMTP is not configured.
type nopNotifier struct{}

func (nopNotifier) BookingConfirmation(context.Context, *booking.Booking) error { return nil }

// disabledPayments is used when gateway credentials are not configured.
type disabledPayments struct{}

func (disabledPayments) CreateOrder(context.Context, string, decimal.Decimal, string) (string, error) {
	return "", errors.New("payment gateway not configured")
}
