package workflow

var ownerByState = map[State]Role{
	StatePendingManager:   RoleManager,
	StatePendingFinance:   RoleFinance,
	StatePendingPresident: RolePresident,
}

// Owner returns the role that currently holds the action on a request in status s.
// Terminal and unknown statuses have no owner.
func Owner(s State) (Role, bool) {
	r, ok := ownerByState[s.Normalize()]
	return r, ok
}

// CanAct is the single authorization gate before any status mutation
func CanAct(s State, role Role) bool {
	owner, ok := Owner(s)
	return ok && owner == role
}
