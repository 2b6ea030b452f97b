package room

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roomly/roomly-api/internal/pkg/cache"
	"github.com/roomly/roomly-api/internal/pkg/events"
)

// CacheInvalidator drops the availability cache of a room whenever a
// booking affecting it is created or cancelled. Deleting a key twice is a
// no-op, so redelivered events are harmless.
type CacheInvalidator struct {
	cache cache.Cache
}

// NewCacheInvalidator creates the availability cache invalidator.
func NewCacheInvalidator(c cache.Cache) *CacheInvalidator {
	return &CacheInvalidator{cache: c}
}

// Bind subscribes the invalidator to booking lifecycle events.
func (i *CacheInvalidator) Bind(bus events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, i.onBookingChanged)
	bus.Subscribe(events.TypeBookingCancelled, i.onBookingChanged)
}

func (i *CacheInvalidator) onBookingChanged(ctx context.Context, evt events.Event) error {
	var payload struct {
		Booking struct {
			RoomID uuid.UUID `json:"room_id"`
		} `json:"booking"`
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	if payload.Booking.RoomID == uuid.Nil {
		return fmt.Errorf("%s payload without room id", evt.Type)
	}

	prefix := availabilityKeyPrefix + payload.Booking.RoomID.String() + ":"
	removed := i.cache.DeleteByPrefix(ctx, prefix)
	log.Debug().
		Str("event_type", evt.Type).
		Str("room_id", payload.Booking.RoomID.String()).
		Int("removed", removed).
		Msg("availability cache invalidated")
	return nil
}
