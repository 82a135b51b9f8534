// Package main is the entrypoint for the booking API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/interpretly/booking/internal/api"
	"github.com/interpretly/booking/internal/api/handler"
	mw "github.com/interpretly/booking/internal/api/middleware"
	"github.com/interpretly/booking/internal/api/response"
	"github.com/interpretly/booking/internal/booking"
	"github.com/interpretly/booking/internal/cache"
	"github.com/interpretly/booking/internal/config"
	"github.com/interpretly/booking/internal/history"
	"github.com/interpretly/booking/internal/matching"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/internal/notify/gateway"
	"github.com/interpretly/booking/internal/scheduler"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Notification gateway
	sink := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	if err := sink.Ready(ctx); err != nil {
		// Degraded start is fine; delivery failures get recorded per attempt.
		slog.Warn("notification gateway not ready", "error", err)
	}

	// 6. Core services
	pgStore := store.NewPostgresStore(pool)
	engine := matching.NewEngine(pgStore)
	dispatcher := notify.NewDispatcher(pgStore, sink, cfg.Notify.SendTimeout)
	bookingSvc := booking.NewService(pgStore, engine, dispatcher, sink, redisCache)
	historySvc := history.NewService(pgStore)

	// 7. Deferred broadcast for scheduled jobs
	sched := scheduler.New(pgStore,
		func(ctx context.Context, job *models.Job) { bookingSvc.DispatchScheduled(ctx, job) },
		cfg.Scheduler.PollInterval, cfg.Scheduler.LeadTime)
	go sched.Run(ctx)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 120)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateJob:      handler.NewCreateJobHandler(bookingSvc),
		CreateJobEmail: handler.NewCreateJobEmailHandler(bookingSvc),
		IndexJobs:      handler.NewIndexJobsHandler(historySvc),
		GetJob:         handler.NewGetJobHandler(historySvc),
		UpdateJob:      handler.NewUpdateJobHandler(bookingSvc),
		JobHistory:     handler.NewJobHistoryHandler(historySvc),
		PotentialJobs:  handler.NewPotentialJobsHandler(bookingSvc),

		AcceptJob:       handler.NewAcceptJobHandler(bookingSvc),
		AcceptJobWithID: handler.NewAcceptJobWithIDHandler(bookingSvc),
		StartJob:        handler.NewStartJobHandler(bookingSvc),
		EndJob:          handler.NewEndJobHandler(bookingSvc),
		CancelJob:       handler.NewCancelJobHandler(bookingSvc),
		CustomerNoShow:  handler.NewCustomerNoShowHandler(bookingSvc),
		DistanceFeed:    handler.NewDistanceFeedHandler(bookingSvc),

		ReopenJob:           handler.NewReopenJobHandler(bookingSvc),
		ResendNotifications: handler.NewResendNotificationsHandler(bookingSvc),
		ResendSMS:           handler.NewResendSMSHandler(bookingSvc),
		ListAttempts:        handler.NewListAttemptsHandler(historySvc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
