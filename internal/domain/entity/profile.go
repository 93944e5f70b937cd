package entity

import (
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Profile is a user record with the single role it holds
type Profile struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	FullName  string        `json:"full_name"`
	Role      workflow.Role `json:"role"`
	LarkID    string        `json:"lark_open_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Actor is the resolved identity performing an action
type Actor struct {
	ID   string        `json:"id"`
	Role workflow.Role `json:"role"`
}

// IsZero reports whether the actor carries no identity
func (a Actor) IsZero() bool {
	return a.ID == ""
}

// Actor returns the acting identity for this profile
func (p *Profile) Actor() Actor {
	return Actor{ID: p.ID, Role: p.Role}
}
