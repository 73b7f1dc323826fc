package entities

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput is a caller mistake; nothing was written.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyAccrued rejects a second check-in or review for the same event.
	ErrAlreadyAccrued = errors.New("already accrued")
	// ErrDuplicateAccrual is returned by the store when a conditional create loses.
	ErrDuplicateAccrual = errors.New("duplicate accrual")
	ErrProfileNotFound  = errors.New("profile not found")
	// ErrPersistence wraps transient store failures; callers may retry.
	ErrPersistence = errors.New("persistence failure")

	ErrNotFound             = errors.New("not found")
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrContention is returned when a compare-and-set keeps losing.
	ErrContention = errors.New("write contention")
	// ErrNoPushDevice means the account has no registered push token.
	ErrNoPushDevice = errors.New("no push device registered")
	// ErrPointsOverflow refuses a credit the points total cannot hold.
	ErrPointsOverflow = fmt.Errorf("points total would overflow: %w", ErrInvalidInput)
)

// HTTPStatus maps an error from the usecases to the status code it is served with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyAccrued), errors.Is(err, ErrDuplicateAccrual):
		return http.StatusConflict
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrNotificationNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrContention):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
