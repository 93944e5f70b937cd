package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger has no transition from the current state
	ErrInvalidTransition = errors.New("workflow: invalid state transition")

	// ErrInvalidState is returned when a status value is unknown
	ErrInvalidState = errors.New("workflow: invalid state")

	// ErrGuardFailed is returned when every guarded transition for a trigger refused
	ErrGuardFailed = errors.New("workflow: guard condition failed")

	// ErrNoPolicy is returned when the role has no tier in the approval ladder
	ErrNoPolicy = errors.New("workflow: role has no approval tier")

	// ErrInvalidPolicy is returned when an approval ladder could cycle or skip an owner
	ErrInvalidPolicy = errors.New("workflow: invalid approval policy")
)
