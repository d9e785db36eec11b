package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	eventService "github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "booking-worker",
		Short:         "Relay booking outbox events to the message broker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yml")

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config) error {
	logger := app.NewLogger(cfg.Log, "booking-worker")
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("the worker needs the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
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

	broker, err := app.NewBroker(cfg, redisClient, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer broker.Close()

	m := metrics.NewMetrics("booking_worker", prometheus.DefaultRegisterer)
	events := eventService.NewEventService(storage.Outbox, logger)

	processor := worker.NewOutboxProcessor(storage.Outbox, broker, app.OutboxProcessorConfig(cfg.Outbox), logger, m)
	cleanup := worker.NewCleanupWorker(events, cfg.Outbox.CleanupInterval, logger)

	checks := map[string]health.Check{"database": storage.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	srv := healthServer(cfg, health.NewHandler(prometheus.DefaultGatherer, checks))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "health server failed")
		}
	}()

	logger.Info("starting outbox worker",
		"broker", cfg.Broker.Driver,
		"batch_size", cfg.Outbox.BatchSize,
		"health_port", cfg.Outbox.HealthPort,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	if cfg.Outbox.CleanupInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleanup.Start(ctx)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(cfg *config.Config, h *health.Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(&engine.RouterGroup)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Outbox.HealthPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
