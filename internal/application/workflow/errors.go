package workflow

import "errors"

// Action failures. Every error returned by the engine wraps exactly one of these.
var (
	// ErrNotFound means the request id does not exist
	ErrNotFound = errors.New("request not found")

	// ErrUnauthenticated means no active identity backs the caller
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller's role cannot act on the request's current status
	ErrForbidden = errors.New("forbidden")

	// ErrPersistence means the status write failed. The request may or may not
	// have moved; re-read it before retrying.
	ErrPersistence = errors.New("persistence error")

	// ErrConflict means another action moved the request first. No write happened.
	ErrConflict = errors.New("request changed concurrently")

	// ErrInvalidAction means the trigger is not approve or reject
	ErrInvalidAction = errors.New("invalid action")

	// ErrPolicy means the approval ladder has no tier for an authorized role
	ErrPolicy = errors.New("approval policy does not cover action")
)

// Reason returns a short label for metrics and logs
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrPolicy):
		return "policy"
	default:
		return "persistence"
	}
}
