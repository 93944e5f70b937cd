package workflow

// Trigger is an approver action that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true for the supported actions
func (t Trigger) IsValid() bool {
	return t == TriggerApprove || t == TriggerReject
}
