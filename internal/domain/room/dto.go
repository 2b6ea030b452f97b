package room

import (
	"time"

	"github.com/google/uuid"
)

// CreateRoomRequest is the payload for POST /rooms
type CreateRoomRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=200"`
	Capacity  int      `json:"capacity" validate:"required,gte=1,lte=500"`
	Location  string   `json:"location" validate:"max=200"`
	Amenities []string `json:"amenities" validate:"max=20"`
}

// UpdateRoomRequest is the payload for PUT /rooms/{id}. Nil fields are left
// unchanged.
type UpdateRoomRequest struct {
	Name      *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Capacity  *int      `json:"capacity,omitempty" validate:"omitempty,gte=1,lte=500"`
	Location  *string   `json:"location,omitempty" validate:"omitempty,max=200"`
	Amenities *[]string `json:"amenities,omitempty" validate:"omitempty,max=20"`
	IsActive  *bool     `json:"is_active,omitempty"`
}

// RoomResponse is the API view of a room
type RoomResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Location  string    `json:"location"`
	Amenities []string  `json:"amenities"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoomResponseFromEntity converts entity to response
func RoomResponseFromEntity(r *Room) *RoomResponse {
	return &RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Location:  r.Location,
		Amenities: append([]string{}, r.Amenities...),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
