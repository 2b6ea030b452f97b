package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roomly/roomly-api/internal/pkg/events"
)

// Sender pushes realtime payloads to a user's open connections.
type Sender interface {
	SendToUserJSON(userID string, payload any) error
}

// Service turns booking lifecycle events into stored notifications and
// realtime pushes. Event delivery is at least once; the store's natural
// key makes redelivered events a no-op.
type Service struct {
	repo   Repository
	sender Sender
	now    func() time.Time
}

// NewService creates notification service. sender may be nil.
func NewService(repo Repository, sender Sender) *Service {
	return &Service{repo: repo, sender: sender, now: time.Now}
}

// Bind subscribes the service to booking lifecycle events.
func (s *Service) Bind(bus events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, s.handleCreated)
	bus.Subscribe(events.TypeBookingCancelled, s.handleCancelled)
}

// bookingEventRecord is the slice of the event payload this consumer needs.
type bookingEventRecord struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (s *Service) handleCreated(ctx context.Context, evt events.Event) error {
	var payload events.BookingCreatedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		log.Error().Err(err).Str("event_type", evt.Type).Msg("malformed booking event dropped")
		return nil
	}
	var b bookingEventRecord
	if err := json.Unmarshal(payload.Booking, &b); err != nil {
		log.Error().Err(err).Str("event_type", evt.Type).Msg("malformed booking record dropped")
		return nil
	}

	return s.record(ctx, &b, TypeBookingConfirmed,
		fmt.Sprintf("Booking confirmed: %s", b.Title),
		fmt.Sprintf("Your room is reserved from %s to %s.",
			b.StartTime.Format("Jan 2 15:04"), b.EndTime.Format("15:04")))
}

func (s *Service) handleCancelled(ctx context.Context, evt events.Event) error {
	var payload events.BookingCancelledPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		log.Error().Err(err).Str("event_type", evt.Type).Msg("malformed booking event dropped")
		return nil
	}
	var b bookingEventRecord
	if err := json.Unmarshal(payload.Booking, &b); err != nil {
		log.Error().Err(err).Str("event_type", evt.Type).Msg("malformed booking record dropped")
		return nil
	}

	body := fmt.Sprintf("Your booking on %s was cancelled.", b.StartTime.Format("Jan 2 15:04"))
	if payload.Reason != "" {
		body = fmt.Sprintf("%s Reason: %s", body, payload.Reason)
	}
	return s.record(ctx, &b, TypeBookingCancelled,
		fmt.Sprintf("Booking cancelled: %s", b.Title), body)
}

// record persists the notification and pushes it if it is new. A store
// error propagates so the bus redelivers; a dedupe hit does not.
func (s *Service) record(ctx context.Context, b *bookingEventRecord, typ Type, title, body string) error {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    b.UserID,
		Type:      typ,
		BookingID: b.ID,
		Title:     title,
		CreatedAt: s.now(),
	}
	if body != "" {
		n.Body.String = body
		n.Body.Valid = true
	}

	inserted, err := s.repo.Create(ctx, n)
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if !inserted {
		// Redelivered event; already recorded and pushed.
		return nil
	}

	s.push(ctx, n)
	return nil
}

func (s *Service) push(ctx context.Context, n *Notification) {
	if s.sender == nil {
		return
	}
	unread, err := s.repo.CountUnread(ctx, n.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", n.UserID).Msg("unread count unavailable for push")
	}

	payload := map[string]interface{}{
		"type": "notification:new",
		"data": map[string]interface{}{
			"notification": NotificationResponseFromEntity(n),
			"unread_count": unread,
		},
	}
	if err := s.sender.SendToUserJSON(n.UserID, payload); err != nil {
		log.Warn().Err(err).Str("user_id", n.UserID).Msg("realtime notification push failed")
	}
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*NotificationResponse, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	out := make([]*NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, NotificationResponseFromEntity(n))
	}
	return out, nil
}

// MarkRead marks a notification read. Marking twice is a no-op success.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*NotificationResponse, error) {
	n, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if n == nil {
		return nil, ErrNotificationNotFound.WithField("notification_id", id.String())
	}
	return NotificationResponseFromEntity(n), nil
}

// UnreadCount returns the user's unread notification count.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	return count, nil
}
