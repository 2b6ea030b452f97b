package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/roomly/roomly-api/internal/pkg/response"
)

// Handler handles notification HTTP and websocket requests
type Handler struct {
	service  *Service
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates notification handler. hub may be nil when realtime
// delivery is disabled.
func NewHandler(service *Service, hub *Hub) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the CORS middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// List handles GET /api/notifications?userId=&unread=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		response.BadRequest(w, "userId query parameter is required")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.service.ListForUser(r.Context(), userID, unreadOnly)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, notifications)
}

// UnreadCount handles GET /api/notifications/unread-count?userId=
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		response.BadRequest(w, "userId query parameter is required")
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, map[string]int{"unread_count": count})
}

// MarkRead handles PUT /api/notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid notification id")
		return
	}

	n, err := h.service.MarkRead(r.Context(), id)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, n)
}

// ServeWS handles GET /ws?userId= by upgrading to a websocket feed.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		response.ServiceUnavailable(w, "realtime notifications are disabled")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		response.BadRequest(w, "userId query parameter is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Connection{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
	}
	h.hub.Register(c)

	go c.WritePump()
	go c.ReadPump(h.hub)
}
