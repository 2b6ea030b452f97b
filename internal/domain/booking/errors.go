package booking

import (
	"github.com/google/uuid"

	"github.com/roomly/roomly-api/internal/pkg/apperr"
)

var (
	ErrBookingNotFound  = apperr.New(apperr.KindNotFound, "BOOKING_NOT_FOUND", "booking not found")
	ErrRoomNotFound     = apperr.New(apperr.KindNotFound, "ROOM_NOT_FOUND", "room not found")
	ErrAlreadyCancelled = apperr.New(apperr.KindConflict, "ALREADY_CANCELLED", "booking is already cancelled")
	ErrStoreUnavailable = apperr.New(apperr.KindUnavailable, "STORE_UNAVAILABLE", "booking store is unavailable")

	// Interval validation errors, checked in this order.
	ErrStartInPast      = apperr.New(apperr.KindInvalidInterval, "START_IN_PAST", "start time is in the past")
	ErrInvalidRange     = apperr.New(apperr.KindInvalidInterval, "INVALID_RANGE", "end time must be after start time")
	ErrDurationTooLong  = apperr.New(apperr.KindInvalidInterval, "DURATION_TOO_LONG", "booking exceeds the maximum duration of 8 hours")
	ErrDurationTooShort = apperr.New(apperr.KindInvalidInterval, "DURATION_TOO_SHORT", "booking is shorter than the minimum duration of 15 minutes")
)

// NewConflictError builds the conflict error carrying the first conflicting
// booking id for the caller.
func NewConflictError(conflictingID uuid.UUID) *apperr.Error {
	return apperr.New(apperr.KindConflict, "BOOKING_CONFLICT", "time slot is already booked").
		WithField("conflicting_booking_id", conflictingID.String())
}
