package service

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// RoleCount is one row of the admin role summary
type RoleCount struct {
	Role  domainwf.Role `json:"role"`
	Count int           `json:"count"`
}

// AdminService manages user roles. It shares the role vocabulary with the
// approval workflow but never takes part in it.
type AdminService interface {
	ListProfiles(ctx context.Context, actor entity.Actor) ([]*entity.Profile, error)
	SetRole(ctx context.Context, actor entity.Actor, userID string, role domainwf.Role) (*entity.Profile, error)
	RoleCounts(ctx context.Context, actor entity.Actor) ([]RoleCount, error)
}

type adminServiceImpl struct {
	profiles   port.ProfileRepository
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewAdminService creates a new AdminService
func NewAdminService(profiles port.ProfileRepository, d dispatcher.Dispatcher, logger Logger) AdminService {
	return &adminServiceImpl{profiles: profiles, dispatcher: d, logger: logger}
}

func (s *adminServiceImpl) requireAdmin(ctx context.Context, actor entity.Actor) error {
	p, err := requireProfile(ctx, s.profiles, actor)
	if err != nil {
		return err
	}
	if p.Role != domainwf.RoleAdmin {
		return fmt.Errorf("%w: role management requires admin", ErrForbidden)
	}
	return nil
}

func (s *adminServiceImpl) ListProfiles(ctx context.Context, actor entity.Actor) ([]*entity.Profile, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	list, err := s.profiles.ListOrderedByEmail(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list profiles: %v", ErrPersistence, err)
	}
	return list, nil
}

func (s *adminServiceImpl) SetRole(ctx context.Context, actor entity.Actor, userID string, role domainwf.Role) (*entity.Profile, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	roles := make([]interface{}, len(domainwf.Roles))
	for i, r := range domainwf.Roles {
		roles[i] = r
	}
	if err := validation.Validate(role, validation.Required, validation.In(roles...)); err != nil {
		return nil, validationError(validation.Errors{"role": err})
	}

	target, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %v", ErrPersistence, err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, userID)
	}
	if target.Role == role {
		return target, nil
	}

	previous := target.Role
	if err := s.profiles.UpdateRole(ctx, userID, role); err != nil {
		return nil, fmt.Errorf("%w: update role: %v", ErrPersistence, err)
	}
	target.Role = role

	s.logger.Info("Role changed", "user_id", userID, "from", previous, "to", role, "by", actor.ID)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRoleChanged, "", "", actor.ID, map[string]interface{}{
			event.KeyUserID: userID,
			event.KeyRole:   role.String(),
		}))
	}
	return target, nil
}

func (s *adminServiceImpl) RoleCounts(ctx context.Context, actor entity.Actor) ([]RoleCount, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	counts, err := s.profiles.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count roles: %v", ErrPersistence, err)
	}
	out := make([]RoleCount, 0, len(domainwf.Roles))
	for _, r := range domainwf.Roles {
		out = append(out, RoleCount{Role: r, Count: counts[r]})
	}
	return out, nil
}
