package rest

import (
	"log/slog"
	"net/http"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/auth"
	"github.com/frahmantamala/merchant-settlement/internal/catalog"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
	"github.com/frahmantamala/merchant-settlement/internal/payment"
	"github.com/frahmantamala/merchant-settlement/internal/settlement"
	"github.com/frahmantamala/merchant-settlement/internal/transport/middleware"
	"github.com/frahmantamala/merchant-settlement/internal/transport/swagger"
	"github.com/frahmantamala/merchant-settlement/internal/withdrawal"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Handlers struct {
	Health     *HealthHandler
	Payment    *payment.Handler
	Catalog    *catalog.Handler
	Ledger     *ledger.Handler
	Withdrawal *withdrawal.Handler
	Settlement *settlement.Handler
	Merchant   *merchant.Handler
}

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	OpenAPISpec    []byte
	MetricsPath    string
	Metrics        *metrics.Recorder
}

func RegisterAllRoutes(router *chi.Mux, cfg RouterConfig, h Handlers, authenticator *auth.Authenticator, logger *slog.Logger) error {
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RequestTimeout > 0 {
		router.Use(chiMiddleware.Timeout(cfg.RequestTimeout))
	}
	if len(cfg.OpenAPISpec) > 0 {
		validate, err := middleware.OpenAPIValidator(cfg.OpenAPISpec, logger)
		if err != nil {
			return err
		}
		router.Use(validate)

		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(cfg.OpenAPISpec)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		router.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	merchantOnly := authenticator.RequireRole(errors.RoleMerchant)
	superadminOnly := authenticator.RequireRole(errors.RoleSuperadmin)

	// Legacy payout endpoint used by the dashboard's withdraw button.
	if h.Withdrawal != nil {
		router.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware, merchantOnly)
			r.Post("/api/withdraw", h.Withdrawal.Withdraw)
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		// Public booking page
		if h.Payment != nil {
			r.Post("/payments/capture", h.Payment.Capture)
		}
		if h.Catalog != nil {
			r.Get("/merchants/{merchantID}/services", h.Catalog.ListMerchantServices)
		}

		r.Route("/me", func(mr chi.Router) {
			mr.Use(authenticator.Middleware, merchantOnly)

			if h.Ledger != nil {
				mr.Get("/balance", h.Ledger.GetMyBalance)
				mr.Get("/ledger", h.Ledger.ListMyEntries)
			}
			if h.Payment != nil {
				mr.Get("/payments", h.Payment.ListMyPayments)
			}
			if h.Withdrawal != nil {
				mr.Post("/withdrawals", h.Withdrawal.RequestWithdrawal)
				mr.Get("/withdrawals", h.Withdrawal.ListMyWithdrawals)
				mr.Get("/withdrawals/{withdrawalID}", h.Withdrawal.GetMyWithdrawal)
			}
		})

		r.Route("/admin", func(ar chi.Router) {
			ar.Use(authenticator.Middleware, superadminOnly)

			if h.Settlement != nil {
				ar.Post("/payments/{paymentID}/release", h.Settlement.Release)
			}
			if h.Merchant != nil {
				ar.Get("/merchants", h.Merchant.ListMerchants)
				ar.Patch("/merchants/{merchantID}/approve", h.Merchant.Approve)
				ar.Patch("/merchants/{merchantID}/reject", h.Merchant.Reject)
			}
		})
	})

	return nil
}
