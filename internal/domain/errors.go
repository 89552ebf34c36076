package domain

import "errors"

// Domain errors. These are expected outcomes callers branch on with errors.Is;
// anything else coming out of the app layer is an infrastructure failure.
var (
	ErrAlreadyExists = errors.New("room already exists")
	ErrNotFound      = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAccessDenied  = errors.New("access to room denied")
)

// IsDomainError reports whether err is one of the expected domain outcomes.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrAccessDenied)
}
