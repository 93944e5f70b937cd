package workflow

import "context"

// Input carries the facts a guard may consult when a trigger fires
type Input struct {
	Role   Role
	Amount float64
}

// StateMachine tracks the current state of one request and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// Fire executes the first transition whose guard accepts the input
	Fire(ctx context.Context, trigger Trigger, in Input) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
