package room

import "github.com/roomly/roomly-api/internal/pkg/apperr"

var (
	ErrRoomNotFound     = apperr.New(apperr.KindNotFound, "ROOM_NOT_FOUND", "room not found")
	ErrStoreUnavailable = apperr.New(apperr.KindUnavailable, "STORE_UNAVAILABLE", "room store is unavailable")
)
