package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/pkg/locker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
)

func TestOpenStorage_Memory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "memory"}}

	s, err := OpenStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, s.DB)
	assert.NotNil(t, s.Bookings)
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())

	cfg.Storage.Driver = "sqlite"
	_, err = OpenStorage(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisBackedComponents(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Redis:   config.RedisConfig{URL: "redis://" + mr.Addr()},
		Broker:  config.BrokerConfig{Driver: "redis", ChannelPrefix: "booking."},
		Booking: config.BookingConfig{Locker: "redis"},
	}

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	_, ok := NewLocker(cfg, client).(*locker.RedisLocker)
	assert.True(t, ok)

	broker, err := NewBroker(cfg, client, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, broker)
}

func TestLocalDefaults(t *testing.T) {
	cfg := &config.Config{
		Broker:  config.BrokerConfig{Driver: "none"},
		Booking: config.BookingConfig{Locker: "local"},
	}

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, client)

	_, ok := NewLocker(cfg, nil).(*locker.LocalLocker)
	assert.True(t, ok)

	broker, err := NewBroker(cfg, nil, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, messaging.NopBroker{}, broker)
}
