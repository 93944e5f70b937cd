package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

func TestAdminService_RequiresAdmin(t *testing.T) {
	svc := NewAdminService(seededProfiles(), nil, nopLogger{})
	ctx := context.Background()

	for _, actor := range []struct {
		name string
		id   string
	}{{"employee", employee.ID}, {"manager", manager.ID}, {"president", president.ID}} {
		t.Run(actor.name, func(t *testing.T) {
			a := employee
			a.ID = actor.id
			if _, err := svc.ListProfiles(ctx, a); !errors.Is(err, ErrForbidden) {
				t.Errorf("ListProfiles() error = %v, want ErrForbidden", err)
			}
			if _, err := svc.SetRole(ctx, a, employee.ID, domainwf.RoleFinance); !errors.Is(err, ErrForbidden) {
				t.Errorf("SetRole() error = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestAdminService_ListProfilesOrderedByEmail(t *testing.T) {
	svc := NewAdminService(seededProfiles(), nil, nopLogger{})
	list, err := svc.ListProfiles(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Email > list[i].Email {
			t.Errorf("profiles not ordered: %s before %s", list[i-1].Email, list[i].Email)
		}
	}
}

func TestAdminService_SetRole(t *testing.T) {
	profiles := seededProfiles()
	disp := newRecordingDispatcher()
	svc := NewAdminService(profiles, disp, nopLogger{})
	ctx := context.Background()

	p, err := svc.SetRole(ctx, admin, employee.ID, domainwf.RoleFinance)
	if err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if p.Role != domainwf.RoleFinance {
		t.Errorf("Role = %v, want finance", p.Role)
	}
	stored, _ := profiles.GetByID(ctx, employee.ID)
	if stored.Role != domainwf.RoleFinance {
		t.Errorf("stored role = %v", stored.Role)
	}

	events := disp.recorded()
	if len(events) != 1 || events[0].Type != event.TypeRoleChanged {
		t.Fatalf("events = %v", events)
	}
	if events[0].GetPayloadString(event.KeyRole) != "finance" {
		t.Errorf("payload role = %q", events[0].GetPayloadString(event.KeyRole))
	}

	// unchanged role raises nothing
	if _, err := svc.SetRole(ctx, admin, employee.ID, domainwf.RoleFinance); err != nil {
		t.Fatal(err)
	}
	if len(disp.recorded()) != 1 {
		t.Error("no-op role change raised an event")
	}

	if _, err := svc.SetRole(ctx, admin, employee.ID, domainwf.Role("ceo")); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid role error = %v, want ErrValidation", err)
	}
	if _, err := svc.SetRole(ctx, admin, "nobody", domainwf.RoleManager); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
}

func TestAdminService_RoleCounts(t *testing.T) {
	svc := NewAdminService(seededProfiles(), nil, nopLogger{})
	counts, err := svc.RoleCounts(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != len(domainwf.Roles) {
		t.Fatalf("len = %d, want %d", len(counts), len(domainwf.Roles))
	}
	for i, c := range counts {
		if c.Role != domainwf.Roles[i] {
			t.Errorf("counts[%d].Role = %v, want %v", i, c.Role, domainwf.Roles[i])
		}
		if c.Count != 1 {
			t.Errorf("%s count = %d, want 1", c.Role, c.Count)
		}
	}
}
