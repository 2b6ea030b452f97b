package notification

import "github.com/roomly/roomly-api/internal/pkg/apperr"

var (
	ErrNotificationNotFound = apperr.New(apperr.KindNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
	ErrStoreUnavailable     = apperr.New(apperr.KindUnavailable, "STORE_UNAVAILABLE", "notification store unavailable")
)
