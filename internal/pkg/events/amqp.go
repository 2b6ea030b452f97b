package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPBus implements Bus on a RabbitMQ topic exchange. Event types are used
// as routing keys; each process consumes from one durable queue bound to the
// types it subscribed to, with manual acks, so delivery is at-least-once.
type AMQPBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewAMQPBus dials the broker and declares the topic exchange and the
// consumer queue for this service instance.
func NewAMQPBus(url, exchange, queue string) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &AMQPBus{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		queue:    queue,
		handlers: make(map[string][]Handler),
	}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, eventType string, payload interface{}) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event payload marshal failed")
		return false
	}
	err = b.ch.PublishWithContext(ctx, b.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         raw,
	})
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("event publish failed, event dropped")
		return false
	}
	return true
}

// Subscribe registers a handler and binds the queue to the event type.
// Call before Start.
func (b *AMQPBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()

	if err := b.ch.QueueBind(b.queue, eventType, b.exchange, false, nil); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("queue bind failed")
	}
}

// Start consumes deliveries until ctx is cancelled. A handler error nacks
// the delivery with requeue, which is where redelivery (and therefore the
// duplicate-delivery requirement on handlers) comes from.
func (b *AMQPBus) Start(ctx context.Context) error {
	deliveries, err := b.ch.ConsumeWithContext(ctx, b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.queue, err)
	}

	go func() {
		for d := range deliveries {
			evt := Event{Type: d.RoutingKey, Payload: d.Body}

			b.mu.RLock()
			handlers := b.handlers[evt.Type]
			b.mu.RUnlock()

			failed := false
			for _, h := range handlers {
				if err := h(ctx, evt); err != nil {
					log.Warn().Err(err).Str("event_type", evt.Type).Msg("event handler failed")
					failed = true
				}
			}
			if failed {
				_ = d.Nack(false, true)
			} else {
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

func (b *AMQPBus) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
