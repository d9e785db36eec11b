package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/pkg/messaging"
)

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	broker := NewRedisBrokerFromClient(client, "booking.", nil)
	t.Cleanup(func() { broker.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := broker.Subscribe(ctx, "booking.reserved")
	require.NoError(t, err)

	sent := messaging.Message{
		ID:         "evt-1",
		Type:       "booking.reserved",
		Payload:    json.RawMessage(`{"slot":"09:00-09:30"}`),
		OccurredAt: time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, broker.Publish(ctx, "booking.reserved", sent))

	select {
	case raw := <-msgs:
		var got messaging.Message
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, sent.ID, got.ID)
		assert.JSONEq(t, string(sent.Payload), string(got.Payload))
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(Config{URL: "not-a-url"})
	assert.Error(t, err)
}
