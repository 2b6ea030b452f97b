package notification

import (
	"time"

	"github.com/google/uuid"
)

// NotificationResponse is the API shape of a notification.
type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	Type      Type       `json:"type"`
	BookingID uuid.UUID  `json:"booking_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationResponseFromEntity converts entity to response
func NotificationResponseFromEntity(n *Notification) *NotificationResponse {
	resp := &NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		BookingID: n.BookingID,
		IsRead:    n.IsRead,
		Title:     n.Title,
		CreatedAt: n.CreatedAt,
	}
	if n.Body.Valid {
		resp.Body = n.Body.String
	}
	if n.ReadAt.Valid {
		t := n.ReadAt.Time
		resp.ReadAt = &t
	}
	return resp
}
