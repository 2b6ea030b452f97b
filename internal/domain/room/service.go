package room

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/roomly/roomly-api/internal/pkg/cache"
)

const (
	availabilityKeyPrefix = "availability:"
	availabilityTTL       = 2 * time.Minute
)

// BookingSource reports the booked intervals of a room. Implemented by an
// adapter over the booking repository at the composition root.
type BookingSource interface {
	// BookedSlots returns the non-cancelled intervals of the room whose
	// start falls within [from, to), ordered by start time.
	BookedSlots(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]Slot, error)
}

// Service owns the room catalog and the availability computation.
type Service struct {
	repo     Repository
	bookings BookingSource
	cache    cache.Cache
	now      func() time.Time
}

// NewService creates room service
func NewService(repo Repository, bookings BookingSource, c cache.Cache) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		cache:    c,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req *CreateRoomRequest) (*Room, error) {
	now := s.now()
	room := &Room{
		ID:        uuid.New(),
		Name:      req.Name,
		Capacity:  req.Capacity,
		Location:  req.Location,
		Amenities: pq.StringArray(req.Amenities),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if room.Amenities == nil {
		room.Amenities = []string{}
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	return room, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	room, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if room == nil {
		return nil, ErrRoomNotFound.WithField("room_id", id.String())
	}
	return room, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Room, error) {
	rooms, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	return rooms, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRoomRequest) (*Room, error) {
	room, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Location != nil {
		room.Location = *req.Location
	}
	if req.Amenities != nil {
		room.Amenities = pq.StringArray(*req.Amenities)
	}
	if req.IsActive != nil {
		room.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, fmt.Errorf("update room: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	return room, nil
}

// Delete deactivates the room. Bookings keep referencing it, so the row is
// never removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	done, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate room: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if !done {
		return ErrRoomNotFound.WithField("room_id", id.String())
	}
	return nil
}

// GetAvailability returns the free/busy view for a room on a calendar day,
// cache-aside under availability:<roomID>:<YYYY-MM-DD>.
func (s *Service) GetAvailability(ctx context.Context, roomID uuid.UUID, date string) (*Availability, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}

	key := availabilityKey(roomID, date)
	var cached Availability
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return &cached, nil
	}

	exists, err := s.repo.ExistsActive(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("check room: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	if !exists {
		return nil, ErrRoomNotFound.WithField("room_id", roomID.String())
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.bookings.BookedSlots(ctx, roomID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", ErrStoreUnavailable.WithField("cause", err.Error()))
	}
	// The store returns them ordered already; sorting again keeps the
	// computation correct for any BookingSource.
	sort.Slice(booked, func(i, j int) bool { return booked[i].Start.Before(booked[j].Start) })

	window := workingWindow(day)
	availability := &Availability{
		RoomID:         roomID,
		Date:           date,
		AvailableSlots: freeSlots(window, booked),
		BookedSlots:    clipToWindow(window, booked),
	}

	cache.SetJSON(ctx, s.cache, key, availability, availabilityTTL)
	return availability, nil
}

func availabilityKey(roomID uuid.UUID, date string) string {
	return availabilityKeyPrefix + roomID.String() + ":" + date
}
