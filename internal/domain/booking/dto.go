package booking

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CreateBookingRequest is the payload for POST /bookings. IdempotencyKey
// comes from the Idempotency-Key header, not the body.
type CreateBookingRequest struct {
	RoomID      string    `json:"roomId" validate:"required,uuid"`
	UserID      string    `json:"userId" validate:"required,min=1,max=200"`
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`

	IdempotencyKey string `json:"-" validate:"max=255"`
}

// CancelBookingRequest is the payload for PUT /bookings/{id}/cancel
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Filter narrows listBookings. Zero values mean "no constraint"; the
// conditions are conjunctive.
type Filter struct {
	RoomID    uuid.UUID
	UserID    string
	Status    Status
	StartFrom time.Time
	StartTo   time.Time
}

// BookingResponse is the API view of a booking
type BookingResponse struct {
	ID             uuid.UUID  `json:"id"`
	RoomID         uuid.UUID  `json:"room_id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Status         Status     `json:"status"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BookingResponseFromEntity converts entity to response
func BookingResponseFromEntity(b *Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:           b.ID,
		RoomID:       b.RoomID,
		UserID:       b.UserID,
		Title:        b.Title,
		Description:  stringOrEmpty(b.Description),
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       b.Status,
		CancelReason: stringOrEmpty(b.CancelReason),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.CancelledAt.Valid {
		t := b.CancelledAt.Time
		resp.CancelledAt = &t
	}
	return resp
}

func stringOrEmpty(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
