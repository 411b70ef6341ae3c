package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydit/hydit-backend/internal/api"
	"github.com/hydit/hydit-backend/internal/api/handlers"
	"github.com/hydit/hydit-backend/internal/auth"
	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/config"
	"github.com/hydit/hydit-backend/internal/db"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/logger"
	"github.com/hydit/hydit-backend/internal/metrics"
	"github.com/hydit/hydit-backend/internal/middleware"
	"github.com/hydit/hydit-backend/internal/repository/postgres"
	"github.com/hydit/hydit-backend/internal/services"
	"github.com/hydit/hydit-backend/internal/settlement"
	"github.com/hydit/hydit-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	var pay settlement.Adapter = settlement.Disabled{}
	if cfg.StripeAPIKey != "" {
		s, err := settlement.NewStripe(cfg.StripeAPIKey, cfg.StripeEnvironment)
		if err != nil {
			log.Error("stripe init", "err", err)
			os.Exit(1)
		}
		pay = s
		log.Info("stripe client initialized", "env", s.Environment())
	} else {
		log.Warn("no stripe key configured, settlement disabled")
	}

	store := postgres.New(pool)
	gate := authz.NewGate(cfg.AdminSubject)
	wp := worker.NewPool(cfg.WorkerCount)
	defer wp.Stop()

	ledgerSvc := ledger.New(store, gate, pay, wp, log, ledger.Config{
		Currency:      cfg.PayoutCurrency,
		PayoutTimeout: cfg.PayoutTimeout,
	})
	userSvc := services.NewUserService(store, gate, pay)
	listingSvc := services.NewListingService(store, gate)
	appSvc := services.NewApplicationService(store, gate)

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:     cfg,
		Auth:    handlers.NewAuthHandler(tm, userSvc, cfg.Env),
		Users:   handlers.NewUserHandler(userSvc),
		Ledger:  handlers.NewLedgerHandler(ledgerSvc, userSvc),
		Market:  handlers.NewMarketplaceHandler(listingSvc, ledgerSvc, userSvc),
		Apps:    handlers.NewApplicationHandler(appSvc, userSvc),
		Webhook: handlers.NewWebhookHandler(ledgerSvc, cfg.StripeWebhookSecret, log),
		AuthMW: middleware.NewAuthMiddleware(tm, cfg.Env, func(ctx context.Context, subject string) (string, bool) {
			u, err := userSvc.Resolve(ctx, subject)
			if err != nil {
				return "", false
			}
			return string(u.Role), true
		}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
