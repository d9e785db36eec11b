package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/app"
	availabilityHandler "github.com/jwalitptl/booking-api/internal/handler/availability"
	bookingHandler "github.com/jwalitptl/booking-api/internal/handler/booking"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/router"
	"github.com/jwalitptl/booking-api/internal/service/availability"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	eventService "github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

func newServeCommand() *cobra.Command {
	var relay bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), relay)
		},
	}
	cmd.Flags().BoolVar(&relay, "relay", false, "also relay outbox events to the broker from this process")
	return cmd
}

func serve(parent context.Context, relay bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log, "booking-api")

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	redisClient, err := app.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.NewMetrics("booking", prometheus.DefaultRegisterer)
	events := eventService.NewEventService(storage.Outbox, log)

	availabilitySvc := availability.NewService(storage.Rules, storage.Exceptions, availability.Config{
		Location: cfg.Location(),
		CacheTTL: cfg.Booking.PatternCacheTTL,
	}, log)
	bookingSvc := booking.NewService(
		availabilitySvc,
		storage.Bookings,
		app.NewLocker(cfg, redisClient),
		events,
		m,
		log,
		booking.Config{Location: cfg.Location(), LockTTL: cfg.Booking.LockTTL},
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.Enabled, auth.NewJWTVerifier(cfg.Auth.Secret))

	checks := map[string]health.Check{"database": storage.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(prometheus.DefaultGatherer, checks),
		[]router.Handler{
			availabilityHandler.NewHandler(availabilitySvc, authMiddleware),
			bookingHandler.NewHandler(bookingSvc, authMiddleware),
		},
		router.RouterConfig{
			Mode:             cfg.Server.Mode,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			RequestTimeout:   cfg.Server.RequestTimeout,
			CORSConfig:       middleware.DefaultCORSConfig(),
			MetricsPrefix:    "booking",
			Registerer:       prometheus.DefaultRegisterer,
		},
	)

	// The in-memory outbox is only visible to this process.
	if relay || cfg.Storage.Driver == "memory" {
		broker, err := app.NewBroker(cfg, redisClient, log)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer broker.Close()
		processor := worker.NewOutboxProcessor(storage.Outbox, broker, app.OutboxProcessorConfig(cfg.Outbox), log, m)
		go processor.Start(ctx)
		if cfg.Outbox.CleanupInterval > 0 {
			go worker.NewCleanupWorker(events, cfg.Outbox.CleanupInterval, log).Start(ctx)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
