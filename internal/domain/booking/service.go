package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roomly/roomly-api/internal/pkg/cache"
	"github.com/roomly/roomly-api/internal/pkg/events"
)

// Booking policy. Global constants, not per-room configuration.
const (
	MinDuration = 15 * time.Minute
	MaxDuration = 8 * time.Hour
)

const (
	bookingKeyPrefix     = "booking:"
	idempotencyKeyPrefix = "idempotency:"

	bookingTTL     = 5 * time.Minute
	idempotencyTTL = 24 * time.Hour
)

// RoomDirectory is the slice of the room catalog the admission engine
// needs: whether a room exists and is bookable.
type RoomDirectory interface {
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service is the booking admission engine. It is stateless between calls;
// all shared state lives in the store and the cache, so instances are safe
// for concurrent use.
type Service struct {
	repo  Repository
	rooms RoomDirectory
	cache cache.Cache
	bus   events.Bus
	now   func() time.Time
}

// NewService creates booking service
func NewService(repo Repository, rooms RoomDirectory, c cache.Cache, bus events.Bus) *Service {
	return &Service{
		repo:  repo,
		rooms: rooms,
		cache: c,
		bus:   bus,
		now:   time.Now,
	}
}

// CreateBooking admits a booking request: idempotency replay, room and
// interval validation, conflict check, persist, cache, publish. Safe to
// retry with the same idempotency key any number of times.
func (s *Service) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*Booking, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.resolveIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			// Replay: the original outcome is returned unchanged. No
			// validation, no conflict check, no event.
			return existing, nil
		}
	}

	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		return nil, ErrRoomNotFound.WithField("room_id", req.RoomID)
	}
	exists, err := s.rooms.ExistsActive(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("check room: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if !exists {
		return nil, ErrRoomNotFound.WithField("room_id", req.RoomID)
	}

	if err := s.validateInterval(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	conflicts, err := s.repo.FindConflicting(ctx, roomID, req.StartTime, req.EndTime, nil)
	if err != nil {
		return nil, fmt.Errorf("conflict query: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if len(conflicts) > 0 {
		s.publishUnavailable(ctx, roomID, req.StartTime, req.EndTime, conflicts[0].ID)
		return nil, NewConflictError(conflicts[0].ID)
	}

	now := s.now()
	b := &Booking{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    req.UserID,
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != "" {
		b.Description = sql.NullString{String: req.Description, Valid: true}
	}
	if req.IdempotencyKey != "" {
		// The token is consumed by the same INSERT that creates the row,
		// so idempotency survives cache loss.
		b.IdempotencyKey = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}

	if err := s.repo.Create(ctx, b); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateIdempotencyKey):
			// Lost a race against another request carrying the same key:
			// the token is consumed, so this is a replay, not a failure.
			return s.fetchConsumedKey(ctx, req.IdempotencyKey)
		case errors.Is(err, ErrOverlapConstraint):
			// Lost a race against a concurrent creation for the same
			// interval. The store constraint is the real guard; re-derive
			// the conflict response the slow path would have produced.
			return nil, s.conflictFromConstraint(ctx, roomID, req.StartTime, req.EndTime)
		default:
			return nil, fmt.Errorf("persist booking: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
		}
	}

	if req.IdempotencyKey != "" {
		s.cache.Set(ctx, idempotencyKeyPrefix+req.IdempotencyKey, []byte(b.ID.String()), idempotencyTTL)
	}
	cache.SetJSON(ctx, s.cache, bookingKeyPrefix+b.ID.String(), BookingResponseFromEntity(b), bookingTTL)

	s.publishBookingEvent(ctx, events.TypeBookingCreated, b, "")
	return b, nil
}

// resolveIdempotencyKey checks the cache first, then the durable index.
// Returns nil when the token is unused.
func (s *Service) resolveIdempotencyKey(ctx context.Context, key string) (*Booking, error) {
	if raw, ok := s.cache.Get(ctx, idempotencyKeyPrefix+key); ok {
		if id, parseErr := uuid.Parse(string(raw)); parseErr == nil {
			b, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("resolve idempotency key: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
			}
			if b != nil {
				return b, nil
			}
		}
		// Stale or corrupt accelerator entry; the durable index decides.
		s.cache.Delete(ctx, idempotencyKeyPrefix+key)
	}

	b, err := s.repo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve idempotency key: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	return b, nil
}

// fetchConsumedKey loads the booking that consumed the key after a
// unique-constraint race.
func (s *Service) fetchConsumedKey(ctx context.Context, key string) (*Booking, error) {
	b, err := s.repo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch consumed key: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if b == nil {
		// The winning transaction has not committed visibly yet.
		return nil, fmt.Errorf("consumed key not readable: %w", ErrStoreUnavailable)
	}
	return b, nil
}

// conflictFromConstraint rebuilds a conflict response when the exclusion
// constraint fired before the slow-path query saw the competing row.
func (s *Service) conflictFromConstraint(ctx context.Context, roomID uuid.UUID, start, end time.Time) error {
	conflicts, err := s.repo.FindConflicting(ctx, roomID, start, end, nil)
	if err != nil || len(conflicts) == 0 {
		return NewConflictError(uuid.Nil)
	}
	s.publishUnavailable(ctx, roomID, start, end, conflicts[0].ID)
	return NewConflictError(conflicts[0].ID)
}

// validateInterval applies the admission checks in their fixed order:
// past start, inverted range, maximum duration, minimum duration.
func (s *Service) validateInterval(start, end time.Time) error {
	if start.Before(s.now()) {
		return ErrStartInPast
	}
	if !end.After(start) {
		return ErrInvalidRange
	}
	duration := end.Sub(start)
	if duration > MaxDuration {
		return ErrDurationTooLong
	}
	if duration < MinDuration {
		return ErrDurationTooShort
	}
	return nil
}

// GetBooking is a cache-aside read. A cached entry may be stale until its
// TTL expires or a cancellation deletes it; that window is accepted.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*BookingResponse, error) {
	key := bookingKeyPrefix + id.String()
	var cached BookingResponse
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return &cached, nil
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if b == nil {
		return nil, ErrBookingNotFound.WithField("booking_id", id.String())
	}

	resp := BookingResponseFromEntity(b)
	cache.SetJSON(ctx, s.cache, key, resp, bookingTTL)
	return resp, nil
}

// ListBookings always reads the store: result sets are unbounded and
// filter-keyed caching is not worth its invalidation cost.
func (s *Service) ListBookings(ctx context.Context, f Filter) ([]*Booking, error) {
	bookings, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	return bookings, nil
}

// CancelBooking transitions CONFIRMED -> CANCELLED. Cancelling twice is a
// conflict the caller must observe, not a silent success.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if b == nil {
		return nil, ErrBookingNotFound.WithField("booking_id", id.String())
	}
	if b.IsCancelled() {
		return nil, ErrAlreadyCancelled.WithField("booking_id", id.String())
	}

	b.Status = StatusCancelled
	b.CancelledAt = sql.NullTime{Time: s.now(), Valid: true}
	if reason != "" {
		b.CancelReason = sql.NullString{String: reason, Valid: true}
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("cancel booking: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}

	// Invalidate, never overwrite: the next read repopulates from the store.
	s.cache.Delete(ctx, bookingKeyPrefix+b.ID.String())

	s.publishBookingEvent(ctx, events.TypeBookingCancelled, b, reason)
	return b, nil
}

// publishBookingEvent is fire-and-forget: a publish failure is logged and
// dropped, never surfaced to the caller.
func (s *Service) publishBookingEvent(ctx context.Context, eventType string, b *Booking, reason string) {
	raw, err := json.Marshal(BookingResponseFromEntity(b))
	if err != nil {
		log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("booking event marshal failed")
		return
	}

	var ok bool
	switch eventType {
	case events.TypeBookingCancelled:
		ok = s.bus.Publish(ctx, eventType, events.BookingCancelledPayload{
			Booking:   raw,
			Reason:    reason,
			Timestamp: s.now(),
		})
	default:
		ok = s.bus.Publish(ctx, eventType, events.BookingCreatedPayload{
			Booking:   raw,
			Timestamp: s.now(),
		})
	}
	if !ok {
		log.Warn().Str("event_type", eventType).Str("booking_id", b.ID.String()).Msg("booking event dropped")
	}
}

func (s *Service) publishUnavailable(ctx context.Context, roomID uuid.UUID, start, end time.Time, conflictingID uuid.UUID) {
	ok := s.bus.Publish(ctx, events.TypeRoomUnavailable, events.RoomUnavailablePayload{
		RoomID:               roomID,
		StartTime:            start,
		EndTime:              end,
		ConflictingBookingID: conflictingID,
		Timestamp:            s.now(),
	})
	if !ok {
		log.Warn().Str("room_id", roomID.String()).Msg("room unavailable event dropped")
	}
}
