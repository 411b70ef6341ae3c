package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/hydit/hydit-backend/internal/api/handlers"
	"github.com/hydit/hydit-backend/internal/config"
	"github.com/hydit/hydit-backend/internal/metrics"
	"github.com/hydit/hydit-backend/internal/middleware"
	"github.com/hydit/hydit-backend/internal/models"
)

type RouterDeps struct {
	Cfg     config.Config
	Auth    *handlers.AuthHandler
	Users   *handlers.UserHandler
	Ledger  *handlers.LedgerHandler
	Market  *handlers.MarketplaceHandler
	Apps    *handlers.ApplicationHandler
	Webhook *handlers.WebhookHandler
	AuthMW  *middleware.AuthMiddleware
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// Webhooks authenticate by signature, not bearer token.
	r.Post("/webhooks/stripe", d.Webhook.Stripe)

	r.Route("/api/v1", func(r chi.Router) {
		if d.Cfg.Env == "dev" {
			r.Post("/auth/login", d.Auth.DevLogin)
		}
		r.Post("/auth/refresh", d.Auth.Refresh)

		// Public marketplace browse.
		r.Get("/marketplace/listings", d.Market.Browse)
		r.Get("/marketplace/listings/{id}", d.Market.Get)

		r.Group(func(r chi.Router) {
			r.Use(d.AuthMW.Auth)

			r.Post("/auth/sync", d.Auth.Sync)

			r.Get("/users/me", d.Users.Me)
			r.Put("/users/me", d.Users.UpdateProfile)
			r.Post("/users/me/pin", d.Users.SetPin)
			r.Post("/users/me/stripe/customer", d.Users.OnboardCustomer)
			r.Post("/users/me/stripe/account", d.Users.OnboardAccount)

			r.Get("/ledger/balance", d.Ledger.Balance)
			r.Get("/ledger/credits", d.Ledger.Credits)
			r.Get("/ledger/transactions", d.Ledger.History)
			r.Post("/ledger/transfer", d.Ledger.Transfer)
			r.Post("/ledger/retire", d.Ledger.Retire)

			r.Get("/ledger/withdrawals", d.Ledger.Withdrawals)
			r.Post("/ledger/withdrawals", d.Ledger.RequestWithdrawal)
			r.Get("/ledger/withdrawals/{id}", d.Ledger.Withdrawal)

			r.With(middleware.RequireRole(string(models.RoleProducer))).
				Post("/marketplace/listings", d.Market.Create)
			r.With(middleware.RequireRole(string(models.RoleProducer))).
				Get("/marketplace/listings/mine/all", d.Market.Mine)
			r.Patch("/marketplace/listings/{id}", d.Market.Update)
			r.Post("/marketplace/listings/{id}/purchase", d.Market.Purchase)

			r.Post("/applications", d.Apps.Apply)
			r.Get("/applications/mine", d.Apps.Mine)

			r.With(middleware.RequireRole(string(models.RoleProducer))).
				Post("/ledger/issue", d.Ledger.Issue)
			r.With(middleware.RequireRole(string(models.RoleCertifier))).
				Post("/ledger/certify", d.Ledger.Certify)

			r.Route("/admin", func(r chi.Router) {
				// Withdrawal review is open to certifiers as well.
				r.With(middleware.RequireRole(string(models.RoleCertifier))).
					Get("/withdrawals/pending", d.Ledger.PendingWithdrawals)
				r.With(middleware.RequireRole(string(models.RoleCertifier))).
					Post("/withdrawals/{id}/finalize", d.Ledger.FinalizeWithdrawal)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole())

					r.Get("/applications/pending", d.Apps.Pending)
					r.Post("/applications/{id}/review", d.Apps.Review)
				})
			})
		})
	})

	return r
}
