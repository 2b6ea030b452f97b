package booking

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roomly/roomly-api/internal/pkg/response"
	"github.com/roomly/roomly-api/internal/pkg/validator"
)

// Handler handles booking HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates booking handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /bookings. The Idempotency-Key header makes the
// request safe to retry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	b, err := h.service.CreateBooking(r.Context(), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.Created(w, BookingResponseFromEntity(b))
}

// GetByID handles GET /bookings/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	b, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, b)
}

// List handles GET /bookings with optional roomId, userId, status, from
// and to query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), f)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	resp := make([]*BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = BookingResponseFromEntity(b)
	}
	response.OK(w, resp)
}

// Cancel handles PUT /bookings/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req CancelBookingRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	b, err := h.service.CancelBooking(r.Context(), id, req.Reason)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.OK(w, BookingResponseFromEntity(b))
}

func filterFromQuery(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	if v := q.Get("roomId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errInvalidFilter("roomId must be a UUID")
		}
		f.RoomID = id
	}
	f.UserID = q.Get("userId")
	if v := q.Get("status"); v != "" {
		if err := validator.ValidateVar(v, "booking_status"); err != nil {
			return f, errInvalidFilter("status must be PENDING, CONFIRMED or CANCELLED")
		}
		f.Status = Status(v)
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errInvalidFilter("from must be an RFC3339 timestamp")
		}
		f.StartFrom = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errInvalidFilter("to must be an RFC3339 timestamp")
		}
		f.StartTo = t
	}
	return f, nil
}

type errInvalidFilter string

func (e errInvalidFilter) Error() string { return string(e) }
