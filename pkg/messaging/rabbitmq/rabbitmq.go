package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/booking-api/pkg/circuitbreaker"
	"github.com/jwalitptl/booking-api/pkg/messaging"
)

type Config struct {
	URL string
	// Exchange is a durable topic exchange; the topic is used as routing key.
	Exchange string
}

// RabbitMQBroker publishes to a topic exchange. An amqp Channel is not safe
// for concurrent publishing, so Publish is serialized.
type RabbitMQBroker struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	cb       *circuitbreaker.CircuitBreaker
	logger   *zerolog.Logger
	mu       sync.Mutex
}

func NewRabbitMQBroker(config Config, logger *zerolog.Logger) (messaging.Broker, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		config.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", config.Exchange, err)
	}

	logger.Info().Str("exchange", config.Exchange).Msg("connected to RabbitMQ")

	return &RabbitMQBroker{
		conn:     conn,
		channel:  channel,
		exchange: config.Exchange,
		logger:   logger,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "rabbitmq-broker",
			MaxFailures: 5,
			Timeout:     5 * time.Second,
		}),
	}, nil
}

func (b *RabbitMQBroker) Publish(ctx context.Context, topic string, message interface{}) error {
	publishing, err := newPublishing(message, time.Now())
	if err != nil {
		return err
	}

	return b.cb.Execute(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := b.channel.PublishWithContext(ctx, b.exchange, topic, false, false, publishing); err != nil {
			return fmt.Errorf("failed to publish message: %w", err)
		}
		return nil
	})
}

// Subscribe binds a private auto-delete queue to topic on the exchange.
func (b *RabbitMQBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	queue, err := ch.QueueDeclare(
		"",
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, topic, b.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue to %s: %w", topic, err)
	}

	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume %s: %w", queue.Name, err)
	}

	msgChan := make(chan []byte, 100)
	go func() {
		defer func() {
			ch.Close()
			close(msgChan)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case msgChan <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgChan, nil
}

func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.channel.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to close RabbitMQ channel")
	}
	return b.conn.Close()
}

func newPublishing(message interface{}, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
	}
	if msg, ok := message.(messaging.Message); ok {
		publishing.MessageId = msg.ID
		publishing.Type = msg.Type
	}
	return publishing, nil
}
