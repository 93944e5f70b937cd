package workflow

import "fmt"

// Tier is one rung of the approval ladder. Amounts strictly above Threshold
// escalate to the next tier; the last tier approves every amount.
type Tier struct {
	Role      Role    `yaml:"role" mapstructure:"role"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// Policy maps (acting role, amount) to the next lifecycle state
type Policy struct {
	tiers []Tier
	index map[Role]int
}

// DefaultTiers is the stock ladder: manager up to 20, finance up to 50, president above
func DefaultTiers() []Tier {
	return []Tier{
		{Role: RoleManager, Threshold: 20},
		{Role: RoleFinance, Threshold: 50},
		{Role: RolePresident},
	}
}

// DefaultPolicy returns the policy built from DefaultTiers
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy validates the ladder and returns a policy over it
func NewPolicy(tiers []Tier) (*Policy, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}

	p := &Policy{
		tiers: append([]Tier{}, tiers...),
		index: make(map[Role]int, len(tiers)),
	}
	for i, t := range tiers {
		p.index[t.Role] = i
	}
	return p, nil
}

// ValidateTiers checks that the ladder starts at the manager, uses each
// approver role at most once and has strictly increasing thresholds.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidPolicy)
	}
	if tiers[0].Role != RoleManager {
		return fmt.Errorf("%w: first tier must be %s, got %s", ErrInvalidPolicy, RoleManager, tiers[0].Role)
	}

	seen := make(map[Role]bool, len(tiers))
	for i, t := range tiers {
		if !t.Role.IsApprover() {
			return fmt.Errorf("%w: %q cannot hold an approval tier", ErrInvalidPolicy, t.Role)
		}
		if seen[t.Role] {
			return fmt.Errorf("%w: duplicate tier for %s", ErrInvalidPolicy, t.Role)
		}
		seen[t.Role] = true

		if i == len(tiers)-1 {
			break
		}
		if t.Threshold < 0 {
			return fmt.Errorf("%w: negative threshold for %s", ErrInvalidPolicy, t.Role)
		}
		if i > 0 && t.Threshold <= tiers[i-1].Threshold {
			return fmt.Errorf("%w: threshold for %s (%.2f) must exceed %s (%.2f)",
				ErrInvalidPolicy, t.Role, t.Threshold, tiers[i-1].Role, tiers[i-1].Threshold)
		}
	}
	return nil
}

// NextState returns the status a request moves to when role approves it
func (p *Policy) NextState(role Role, amount float64) (State, error) {
	i, ok := p.index[role]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPolicy, role)
	}

	if i == len(p.tiers)-1 || amount <= p.tiers[i].Threshold {
		return StateApproved, nil
	}

	next, _ := p.tiers[i+1].Role.PendingState()
	return next, nil
}

// Tiers returns a copy of the ladder
func (p *Policy) Tiers() []Tier {
	return append([]Tier{}, p.tiers...)
}

// Escalates reports whether moving to s hands the request to another approver
func Escalates(s State) bool {
	return s.IsPending()
}
