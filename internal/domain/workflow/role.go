package workflow

// Role is the single role an actor holds
type Role string

const (
	RoleEmployee  Role = "employee"
	RoleManager   Role = "manager"
	RoleFinance   Role = "finance"
	RolePresident Role = "president"
	RoleAdmin     Role = "admin"
)

// Roles lists the fixed role vocabulary in display order
var Roles = []Role{RoleEmployee, RoleManager, RoleFinance, RolePresident, RoleAdmin}

var pendingStateByRole = map[Role]State{
	RoleManager:   StatePendingManager,
	RoleFinance:   StatePendingFinance,
	RolePresident: StatePendingPresident,
}

// IsValid returns true if the role is part of the vocabulary
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleFinance, RolePresident, RoleAdmin:
		return true
	}
	return false
}

// IsApprover returns true if the role owns a pending state
func (r Role) IsApprover() bool {
	_, ok := pendingStateByRole[r]
	return ok
}

// PendingState returns the status in which the role holds the action
func (r Role) PendingState() (State, bool) {
	s, ok := pendingStateByRole[r]
	return s, ok
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
