package room

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roomly/roomly-api/internal/pkg/response"
	"github.com/roomly/roomly-api/internal/pkg/validator"
)

// Handler handles room HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates room handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /rooms
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	rooms, err := h.service.List(r.Context(), includeInactive)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	resp := make([]*RoomResponse, len(rooms))
	for i, rm := range rooms {
		resp[i] = RoomResponseFromEntity(rm)
	}
	response.OK(w, resp)
}

// GetByID handles GET /rooms/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	rm, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, RoomResponseFromEntity(rm))
}

// Create handles POST /rooms
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	rm, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.Created(w, RoomResponseFromEntity(rm))
}

// Update handles PUT /rooms/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	var req UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	rm, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, RoomResponseFromEntity(rm))
}

// Delete handles DELETE /rooms/{id} (logical delete)
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "deactivated"})
}

// GetAvailability handles GET /rooms/{id}/availability?date=YYYY-MM-DD
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if err := validator.ValidateVar(date, "date"); err != nil {
		response.BadRequest(w, "Invalid date, expected YYYY-MM-DD")
		return
	}

	availability, err := h.service.GetAvailability(r.Context(), id, date)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, availability)
}
