package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. BOOKING_DB_HOST.
const EnvPrefix = "BOOKING"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// StorageConfig picks where rules, exceptions and bookings live.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type BrokerConfig struct {
	Driver        string `mapstructure:"driver"` // redis | rabbitmq | none
	ChannelPrefix string `mapstructure:"channel_prefix"`
	RabbitMQURL   string `mapstructure:"rabbitmq_url"`
	Exchange      string `mapstructure:"exchange"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type BookingConfig struct {
	Timezone        string        `mapstructure:"timezone"`
	Locker          string        `mapstructure:"locker"` // redis | local
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	PatternCacheTTL time.Duration `mapstructure:"pattern_cache_ttl"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	HealthPort      int           `mapstructure:"health_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// envOverrides lists the settings that can be replaced from the environment
// without touching config.yml.
type envOverrides struct {
	ServerPort    int     `envconfig:"SERVER_PORT"`
	DBHost        string  `envconfig:"DB_HOST"`
	DBPort        int     `envconfig:"DB_PORT"`
	DBUser        string  `envconfig:"DB_USER"`
	DBPassword    string  `envconfig:"DB_PASSWORD"`
	DBName        string  `envconfig:"DB_NAME"`
	DBSSLMode     string  `envconfig:"DB_SSLMODE"`
	StorageDriver string  `envconfig:"STORAGE_DRIVER"`
	RedisURL      string  `envconfig:"REDIS_URL"`
	BrokerDriver  string  `envconfig:"BROKER_DRIVER"`
	RabbitMQURL   string  `envconfig:"RABBITMQ_URL"`
	AuthEnabled   *bool   `envconfig:"AUTH_ENABLED"`
	AuthSecret    string  `envconfig:"AUTH_SECRET"`
	Timezone      string  `envconfig:"TIMEZONE"`
	Locker        string  `envconfig:"LOCKER"`
	LogLevel      string  `envconfig:"LOG_LEVEL"`
	RateLimitRPS  float64 `envconfig:"RATE_LIMIT_RPS"`
}

// LoadConfig reads .env (if any), then config.yml from the usual locations
// (or path when given), then BOOKING_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	env.apply(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.request_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "booking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("broker.driver", "redis")
	v.SetDefault("broker.exchange", "booking.events")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("booking.timezone", "UTC")
	v.SetDefault("booking.locker", "redis")
	v.SetDefault("booking.lock_ttl", "5s")
	v.SetDefault("booking.pattern_cache_ttl", "30s")

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "5s")
	v.SetDefault("outbox.cleanup_interval", "1h")
	v.SetDefault("outbox.health_port", 8081)

	v.SetDefault("log.level", "info")
}

func (e envOverrides) apply(c *Config) {
	setInt(&c.Server.Port, e.ServerPort)
	setString(&c.Database.Host, e.DBHost)
	setInt(&c.Database.Port, e.DBPort)
	setString(&c.Database.User, e.DBUser)
	setString(&c.Database.Password, e.DBPassword)
	setString(&c.Database.Name, e.DBName)
	setString(&c.Database.SSLMode, e.DBSSLMode)
	setString(&c.Storage.Driver, e.StorageDriver)
	setString(&c.Redis.URL, e.RedisURL)
	setString(&c.Broker.Driver, e.BrokerDriver)
	setString(&c.Broker.RabbitMQURL, e.RabbitMQURL)
	if e.AuthEnabled != nil {
		c.Auth.Enabled = *e.AuthEnabled
	}
	setString(&c.Auth.Secret, e.AuthSecret)
	setString(&c.Booking.Timezone, e.Timezone)
	setString(&c.Booking.Locker, e.Locker)
	setString(&c.Log.Level, e.LogLevel)
	if e.RateLimitRPS > 0 {
		c.RateLimit.RequestsPerSecond = e.RateLimitRPS
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Validate rejects combinations the binaries cannot start with.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q must be postgres or memory", c.Storage.Driver))
	}
	switch c.Broker.Driver {
	case "redis", "none":
	case "rabbitmq":
		if c.Broker.RabbitMQURL == "" {
			problems = append(problems, "broker.rabbitmq_url is required for the rabbitmq broker")
		}
	default:
		problems = append(problems, fmt.Sprintf("broker.driver %q must be redis, rabbitmq or none", c.Broker.Driver))
	}
	switch c.Booking.Locker {
	case "redis", "local":
	default:
		problems = append(problems, fmt.Sprintf("booking.locker %q must be redis or local", c.Booking.Locker))
	}
	if c.NeedsRedis() && c.Redis.URL == "" {
		problems = append(problems, "redis.url is required")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		problems = append(problems, "auth.secret is required when auth is enabled")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("booking.timezone: %v", err))
	}
	if c.Booking.LockTTL <= 0 {
		problems = append(problems, "booking.lock_ttl must be positive")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 || c.Outbox.RetryAttempts <= 0 || c.Outbox.RetryDelay <= 0 {
		problems = append(problems, "outbox batch_size, poll_interval, retry_attempts and retry_delay must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) NeedsRedis() bool {
	return c.Broker.Driver == "redis" || c.Booking.Locker == "redis"
}

// Location returns the time zone rules and bookings are expressed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
