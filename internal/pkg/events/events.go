package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the booking engine.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
	TypeRoomUnavailable  = "resource.unavailable"
)

// Event is the unit of delivery. Payload stays raw JSON so the same handler
// code works for the in-process bus and the AMQP bus.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler consumes one event delivery. Delivery is at-least-once: the same
// logical event may arrive more than once, so handlers must be idempotent.
// A non-nil error asks the bus to redeliver.
type Handler func(ctx context.Context, evt Event) error

// Bus decouples side effects (notifications, analytics, cache invalidation)
// from the admission path. Publish is best-effort: a false return means the
// event was dropped, and callers must not fail their own operation over it.
type Bus interface {
	Publish(ctx context.Context, eventType string, payload interface{}) bool
	Subscribe(eventType string, handler Handler)
}

// BookingCreatedPayload is the payload of booking.created events.
type BookingCreatedPayload struct {
	Booking   json.RawMessage `json:"booking"`
	Timestamp time.Time       `json:"timestamp"`
}

// BookingCancelledPayload is the payload of booking.cancelled events.
type BookingCancelledPayload struct {
	Booking   json.RawMessage `json:"booking"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RoomUnavailablePayload is published when a create request loses the
// conflict check, before the request fails with a conflict.
type RoomUnavailablePayload struct {
	RoomID               uuid.UUID `json:"room_id"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	ConflictingBookingID uuid.UUID `json:"conflicting_booking_id"`
	Timestamp            time.Time `json:"timestamp"`
}
