package workflow

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// WorkflowEngine applies approver actions to requests of any kind
type WorkflowEngine interface {
	// Approve advances the request along the approval ladder
	Approve(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (*TransitionResult, error)

	// Reject moves the request straight to rejected
	Reject(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (*TransitionResult, error)

	// Act applies an arbitrary trigger; Approve and Reject delegate here
	Act(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string, trigger domainwf.Trigger) (*TransitionResult, error)

	// ListActionable lists requests of one kind, newest first, with the ones the actor may act on
	ListActionable(ctx context.Context, actor entity.Actor, kind entity.RequestKind) (*ActionableView, error)

	// ResolveRole looks up the actor's current role in the record store
	ResolveRole(ctx context.Context, actor entity.Actor) (domainwf.Role, error)

	// AvailableActions lists what role may do to a request in status
	AvailableActions(status domainwf.State, role domainwf.Role) []domainwf.Trigger
}

// TransitionResult describes one committed status change
type TransitionResult struct {
	Kind      entity.RequestKind     `json:"kind"`
	ID        string                 `json:"id"`
	Action    domainwf.Trigger       `json:"action"`
	From      domainwf.State         `json:"from"`
	To        domainwf.State         `json:"to"`
	Escalated bool                   `json:"escalated"`
	NextRole  domainwf.Role          `json:"next_role,omitempty"`
	Request   *entity.RequestSummary `json:"request"`
}
