package workflow

import "strings"

// State is a persisted request status in the approval lifecycle
type State string

const (
	// StatePending is the legacy unqualified status written by older records.
	// It has the same meaning as StatePendingManager.
	StatePending          State = "pending"
	StatePendingManager   State = "pending_manager"
	StatePendingFinance   State = "pending_finance"
	StatePendingPresident State = "pending_president"
	StateApproved         State = "approved"
	StateRejected         State = "rejected"
)

// InitialState is the status every new request is created with
const InitialState = StatePendingManager

var validStates = map[State]bool{
	StatePending:          true,
	StatePendingManager:   true,
	StatePendingFinance:   true,
	StatePendingPresident: true,
	StateApproved:         true,
	StateRejected:         true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// PendingStates lists every non-terminal status, including the legacy alias
var PendingStates = []State{
	StatePending,
	StatePendingManager,
	StatePendingFinance,
	StatePendingPresident,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsPending returns true for any status awaiting an approver
func (s State) IsPending() bool {
	return s.IsValid() && !s.IsTerminal()
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known status value
func (s State) IsValid() bool {
	return validStates[s]
}

// Normalize folds the legacy alias into its canonical status
func (s State) Normalize() State {
	if s == StatePending {
		return StatePendingManager
	}
	return s
}

// Equivalent reports whether two statuses mean the same thing
func (s State) Equivalent(other State) bool {
	return s.Normalize() == other.Normalize()
}

// Aliases returns every persisted value that means the same as s
func (s State) Aliases() []State {
	if s.Normalize() == StatePendingManager {
		return []State{StatePendingManager, StatePending}
	}
	return []State{s}
}

// Label renders the status the way dashboards badge it, e.g. "PENDING FINANCE"
func (s State) Label() string {
	return strings.ToUpper(strings.ReplaceAll(string(s.Normalize()), "_", " "))
}
