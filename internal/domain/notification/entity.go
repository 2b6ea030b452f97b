package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeBookingConfirmed Type = "booking_confirmed" // Booker: reservation admitted
	TypeBookingCancelled Type = "booking_cancelled" // Booker: reservation cancelled
)

// Notification represents a user notification.
//
// (user_id, type, booking_id) is the natural key: the originating events
// are delivered at least once, so the store deduplicates on it.
type Notification struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Type      Type           `db:"type" json:"type"`
	BookingID uuid.UUID      `db:"booking_id" json:"booking_id"`
	Title     string         `db:"title" json:"title"`
	Body      sql.NullString `db:"body" json:"body,omitempty"`
	IsRead    bool           `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime   `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
