package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  host: db.internal
storage:
  driver: memory
broker:
  driver: none
booking:
  timezone: Europe/Berlin
  locker: local
  lock_ttl: 2s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "default")
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Booking.LockTTL)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\n")
	t.Setenv("BOOKING_DB_HOST", "from-env")
	t.Setenv("BOOKING_AUTH_ENABLED", "true")
	t.Setenv("BOOKING_AUTH_SECRET", "s3cret")
	t.Setenv("BOOKING_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		config string
		errMsg string
	}{
		{
			name:   "unknown storage driver",
			config: "storage:\n  driver: mongo\n",
			errMsg: "storage.driver",
		},
		{
			name:   "auth without secret",
			config: "auth:\n  enabled: true\n",
			errMsg: "auth.secret",
		},
		{
			name:   "rabbitmq without url",
			config: "broker:\n  driver: rabbitmq\n",
			errMsg: "broker.rabbitmq_url",
		},
		{
			name:   "bad timezone",
			config: "booking:\n  timezone: Mars/Olympus\n",
			errMsg: "booking.timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
