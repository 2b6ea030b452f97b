package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Room represents a bookable conference room. Exclusive occupancy: one
// non-cancelled booking per time interval regardless of capacity.
type Room struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Capacity  int            `db:"capacity" json:"capacity"`
	Location  string         `db:"location" json:"location"`
	Amenities pq.StringArray `db:"amenities" json:"amenities"`
	IsActive  bool           `db:"is_active" json:"is_active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Slot is a half-open time interval [Start, End).
type Slot struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// Availability is the derived free/busy view for one room and one day.
// Never stored durably; cached with a short TTL and invalidated on booking
// changes.
type Availability struct {
	RoomID         uuid.UUID `json:"room_id"`
	Date           string    `json:"date"`
	AvailableSlots []Slot    `json:"available_slots"`
	BookedSlots    []Slot    `json:"booked_slots"`
}
