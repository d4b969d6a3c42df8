package domain

import "errors"

var (
	ErrPollNotFound        = errors.New("poll not found")
	ErrNominationNotFound  = errors.New("nomination not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyStarted      = errors.New("poll has already started")
	ErrNotStarted          = errors.New("poll has not started")
	ErrNotAdmin            = errors.New("admin privileges required")
	ErrInvalidToken        = errors.New("invalid authorization token")
	ErrValidation          = errors.New("validation failed")
	ErrStoreFailure        = errors.New("session store failure")
)

// ErrorKind is the stable category reported to clients.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NotFound"
	KindAlreadyStarted   ErrorKind = "AlreadyStarted"
	KindNotStarted       ErrorKind = "NotStarted"
	KindUnauthorized     ErrorKind = "Unauthorized"
	KindValidationFailed ErrorKind = "ValidationFailed"
	KindStoreFailure     ErrorKind = "StoreFailure"
)

// KindOf classifies err. Anything unrecognised is reported as a store
// failure so it is never mistaken for a client mistake.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPollNotFound),
		errors.Is(err, ErrNominationNotFound),
		errors.Is(err, ErrParticipantNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyStarted):
		return KindAlreadyStarted
	case errors.Is(err, ErrNotStarted):
		return KindNotStarted
	case errors.Is(err, ErrNotAdmin), errors.Is(err, ErrInvalidToken):
		return KindUnauthorized
	case errors.Is(err, ErrValidation):
		return KindValidationFailed
	default:
		return KindStoreFailure
	}
}

// IsDomain reports whether err is safe to show to the requesting client.
func IsDomain(err error) bool {
	return KindOf(err) != KindStoreFailure
}
