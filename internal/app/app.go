// Package app builds the infrastructure shared by the api and worker
// binaries from configuration.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/pkg/locker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/messaging/rabbitmq"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

// NewLogger builds the service logger and installs it as the global zerolog
// logger used by the HTTP middleware.
func NewLogger(cfg config.LogConfig, service string) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Output: os.Stdout,
		Pretty: cfg.Pretty,
	})
	l = l.WithFields(map[string]interface{}{"service": service})
	log.Logger = l.ZL
	return l
}

// Storage groups the repositories of one storage driver.
type Storage struct {
	DB         *sqlx.DB
	Rules      repository.AvailabilityRuleRepository
	Exceptions repository.AvailabilityExceptionRepository
	Bookings   repository.BookingRepository
	Outbox     repository.OutboxRepository
}

// OpenStorage connects to Postgres or builds the in-memory repositories.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return &Storage{
			Rules:      memory.NewRuleRepository(),
			Exceptions: memory.NewExceptionRepository(),
			Bookings:   memory.NewBookingRepository(),
			Outbox:     memory.NewOutboxRepository(),
		}, nil
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		base := postgres.NewBaseRepository(db)
		return &Storage{
			DB:         db,
			Rules:      postgres.NewRuleRepository(base),
			Exceptions: postgres.NewExceptionRepository(base),
			Bookings:   postgres.NewBookingRepository(base),
			Outbox:     postgres.NewOutboxRepository(base),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func (s *Storage) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// Ping checks the database; the memory driver is always ready.
func (s *Storage) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

func redisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		URL:           cfg.Redis.URL,
		MaxRetries:    cfg.Redis.MaxRetries,
		RetryBackoff:  cfg.Redis.RetryBackoff,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		ChannelPrefix: cfg.Broker.ChannelPrefix,
	}
}

// NewRedisClient returns nil when nothing configured needs Redis.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	if !cfg.NeedsRedis() {
		return nil, nil
	}
	client, err := redis.NewClient(redisConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewLocker picks the slot locker. The local locker only serializes
// reservations within one process.
func NewLocker(cfg *config.Config, client *goredis.Client) locker.Locker {
	if cfg.Booking.Locker == "redis" && client != nil {
		return locker.NewRedisLocker(client, "booking:lock:")
	}
	return locker.NewLocalLocker()
}

// NewBroker connects the configured event broker.
func NewBroker(cfg *config.Config, client *goredis.Client, l *logger.Logger) (messaging.Broker, error) {
	switch cfg.Broker.Driver {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis broker needs a redis client")
		}
		return redis.NewRedisBrokerFromClient(client, cfg.Broker.ChannelPrefix, &l.ZL), nil
	case "rabbitmq":
		return rabbitmq.NewRabbitMQBroker(rabbitmq.Config{
			URL:      cfg.Broker.RabbitMQURL,
			Exchange: cfg.Broker.Exchange,
		}, &l.ZL)
	case "none":
		return messaging.NopBroker{}, nil
	}
	return nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
}

func OutboxProcessorConfig(cfg config.OutboxConfig) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}
}
