package booking

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents booking lifecycle state. CANCELLED is terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Booking is a reservation of a room for the half-open interval
// [StartTime, EndTime). Rows are append-only: cancellation flips the status
// and stamps cancelled_at, nothing is ever deleted.
type Booking struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	RoomID         uuid.UUID      `db:"room_id" json:"room_id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Title          string         `db:"title" json:"title"`
	Description    sql.NullString `db:"description" json:"-"`
	StartTime      time.Time      `db:"start_time" json:"start_time"`
	EndTime        time.Time      `db:"end_time" json:"end_time"`
	Status         Status         `db:"status" json:"status"`
	IdempotencyKey sql.NullString `db:"idempotency_key" json:"-"`
	CancelReason   sql.NullString `db:"cancel_reason" json:"-"`
	CancelledAt    sql.NullTime   `db:"cancelled_at" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IsCancelled reports whether the booking reached its terminal state.
func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// Overlaps reports whether the booking's interval intersects [start, end),
// using the open-interval test: existing.start < end AND existing.end > start.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}
