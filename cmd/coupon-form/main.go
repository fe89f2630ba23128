package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cheertaboi/coupon-form-service/internal/analytics"
	"github.com/Cheertaboi/coupon-form-service/internal/api"
	"github.com/Cheertaboi/coupon-form-service/internal/api/middleware"
	"github.com/Cheertaboi/coupon-form-service/internal/catalog"
	"github.com/Cheertaboi/coupon-form-service/internal/concurrency"
	"github.com/Cheertaboi/coupon-form-service/internal/config"
	"github.com/Cheertaboi/coupon-form-service/internal/form"
	"github.com/Cheertaboi/coupon-form-service/internal/logging"
	"github.com/Cheertaboi/coupon-form-service/internal/metrics"
	"github.com/Cheertaboi/coupon-form-service/internal/repository"
	"github.com/Cheertaboi/coupon-form-service/internal/service"
	"github.com/Cheertaboi/coupon-form-service/internal/session"
	"github.com/Cheertaboi/coupon-form-service/pkg/db"
)

func main() {
	configPath := flag.String("config", os.Getenv("COUPON_FORM_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.SetupLevel("coupon-form", cfg.Env, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("coupon-form stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	repo := repository.NewCouponRepo(conn, repository.Postgres)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	coupons := service.NewCouponService(repo, cfg.Catalog.CacheTTL, logger)

	refs, err := catalog.LoadReferences(cfg.References.Path)
	if err != nil {
		return err
	}
	if len(refs.Categories()) > 0 {
		coupons.WithCategories(refs)
	}

	m := metrics.New("coupon_form")
	pool := concurrency.NewPool(ctx, cfg.Catalog.Workers, cfg.Catalog.Queue)
	defer pool.Close()

	opts := form.Options{
		References: refs,
		Persister:  coupons,
		Runner:     pool,
		Observer:   m,
	}
	var client *catalog.Client
	if cfg.Catalog.BaseURL != "" {
		client = catalog.NewClient(catalog.Options{
			BaseURL:  cfg.Catalog.BaseURL,
			Token:    cfg.Catalog.Token,
			Timeout:  cfg.Catalog.Timeout,
			CacheTTL: cfg.Catalog.CacheTTL,
			Logger:   logger,
		})
		opts.Lookup = client
	} else {
		logger.Warn("catalog base_url not configured; seat types will not be offered")
	}

	sessions := session.NewManager(opts, cfg.Sessions.TTL, m, logger)
	go sessions.Run(ctx, time.Minute)

	deps := api.Deps{
		Sessions:   sessions,
		Coupons:    coupons,
		References: refs,
		Tracker:    analytics.NewLogTracker(logger),
		Metrics:    m,
		Logger:     logger,
	}
	if client != nil {
		deps.SeatCache = client
	}
	if cfg.RateLimited() {
		deps.RateLimiter = middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		})
	}
	go housekeep(ctx, deps.RateLimiter, client, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting coupon-form", "listen", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	sessions.CloseAll()
	logger.Info("server stopped")
	return nil
}

// housekeep forgets idle rate-limit clients and expired seat offerings.
func housekeep(ctx context.Context, rl *middleware.RateLimiter, client *catalog.Client, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if rl != nil {
				rl.Prune(10 * time.Minute)
			}
			if client != nil {
				if n := client.PurgeExpired(); n > 0 {
					logger.Debug("expired seat offerings purged", "count", n)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
