package workflow

import (
	"context"
	"fmt"
)

// Lifecycle computes status transitions for any request kind. It does not
// authorize: callers gate every action with CanAct first.
type Lifecycle struct {
	policy  *Policy
	builder StateMachineBuilder
}

// NewLifecycle wires the approval ladder into a state machine definition
func NewLifecycle(policy *Policy) *Lifecycle {
	b := NewBuilder()
	targets := []State{StatePendingFinance, StatePendingPresident, StateApproved}

	for _, from := range []State{StatePendingManager, StatePendingFinance, StatePendingPresident} {
		cfg := b.Configure(from)
		for _, to := range targets {
			cfg.PermitIf(TriggerApprove, to, approvesTo(policy, to))
		}
		cfg.Permit(TriggerReject, StateRejected)
	}

	return &Lifecycle{policy: policy, builder: b}
}

func approvesTo(policy *Policy, target State) GuardFunc {
	return func(_ context.Context, in Input) bool {
		next, err := policy.NextState(in.Role, in.Amount)
		return err == nil && next == target
	}
}

// Transition returns the status that results from role firing trigger on a
// request in status from with the given amount.
func (l *Lifecycle) Transition(ctx context.Context, from State, trigger Trigger, in Input) (State, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, from)
	}

	m := l.builder.Build(from.Normalize())
	if err := m.Fire(ctx, trigger, in); err != nil {
		return "", err
	}
	return m.State(), nil
}

// Actions lists the triggers role may fire on a request in status. It is
// empty when role cannot act on it.
func (l *Lifecycle) Actions(status State, role Role) []Trigger {
	if !CanAct(status, role) {
		return []Trigger{}
	}
	return l.builder.Build(status.Normalize()).PermittedTriggers()
}
