package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted   Type = "request.submitted"
	TypeRequestApproved    Type = "request.approved"
	TypeRequestEscalated   Type = "request.escalated"
	TypeRequestRejected    Type = "request.rejected"
	TypeStatusChanged      Type = "request.status_changed"
	TypeNotificationStored Type = "notification.created"
	TypeRoleChanged        Type = "profile.role_changed"
	TypeReminderDue        Type = "request.reminder_due"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeRequestApproved,
		TypeRequestEscalated,
		TypeRequestRejected,
		TypeStatusChanged,
		TypeNotificationStored,
		TypeRoleChanged,
		TypeReminderDue:
		return true
	default:
		return false
	}
}
