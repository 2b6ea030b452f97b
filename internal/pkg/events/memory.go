package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	subscriberQueueSize = 64
	deliveryAttempts    = 3
	retryBackoff        = 50 * time.Millisecond
)

type subscriber struct {
	eventType string
	handler   Handler
	queue     chan Event
}

// MemoryBus is the default in-process Bus. Every subscriber gets its own
// queue and goroutine, so slow handlers never block Publish or each other.
// Failed handlers are retried a bounded number of times, which gives the
// same at-least-once shape as the AMQP bus: handlers must be idempotent.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
}

// NewMemoryBus creates a bus ready for Subscribe and Publish. Publishing
// with zero subscribers is legal and simply drops the event.
func NewMemoryBus() *MemoryBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryBus{
		subscribers: make(map[string][]*subscriber),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (b *MemoryBus) Subscribe(eventType string, handler Handler) {
	sub := &subscriber{
		eventType: eventType,
		handler:   handler,
		queue:     make(chan Event, subscriberQueueSize),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)
}

func (b *MemoryBus) Publish(_ context.Context, eventType string, payload interface{}) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event payload marshal failed")
		return false
	}
	evt := Event{Type: eventType, Payload: raw}

	b.mu.RLock()
	subs := b.subscribers[eventType]
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return false
	}

	for _, sub := range subs {
		select {
		case sub.queue <- evt:
		default:
			log.Warn().Str("event_type", eventType).Msg("subscriber queue full, event dropped")
		}
	}
	return true
}

func (b *MemoryBus) run(sub *subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case evt := <-sub.queue:
			b.deliver(sub, evt)
		}
	}
}

func (b *MemoryBus) deliver(sub *subscriber, evt Event) {
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		err := sub.handler(b.ctx, evt)
		if err == nil {
			return
		}
		log.Warn().
			Err(err).
			Str("event_type", evt.Type).
			Int("attempt", attempt).
			Msg("event handler failed")
		if attempt < deliveryAttempts {
			time.Sleep(retryBackoff)
		}
	}
}

// Close stops dispatching. Already queued events may be discarded; the bus
// never promises delivery across process restarts.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}
