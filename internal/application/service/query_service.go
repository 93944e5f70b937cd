package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-workflow/internal/application/port"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// RequestDetail is a single request with the viewer's options and its audit trail
type RequestDetail struct {
	Request     *entity.RequestSummary `json:"request"`
	StatusLabel string                 `json:"status_label"`
	CanAct      bool                   `json:"can_act"`
	Actions     []domainwf.Trigger     `json:"actions"`
	History     []*entity.HistoryEntry `json:"history"`
}

// QueryService reads requests on behalf of an actor
type QueryService interface {
	// List returns requests of one kind newest first. Employees only ever see
	// their own; mine restricts approvers the same way.
	List(ctx context.Context, actor entity.Actor, kind entity.RequestKind, mine bool) (*appwf.ActionableView, error)
	Get(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (*RequestDetail, error)
	History(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) ([]*entity.HistoryEntry, error)
}

type queryServiceImpl struct {
	requests port.RequestRepository
	history  port.HistoryRepository
	engine   appwf.WorkflowEngine
}

// NewQueryService creates a new QueryService
func NewQueryService(requests port.RequestRepository, history port.HistoryRepository, engine appwf.WorkflowEngine) QueryService {
	return &queryServiceImpl{requests: requests, history: history, engine: engine}
}

func seesAll(role domainwf.Role) bool {
	return role.IsApprover() || role == domainwf.RoleAdmin
}

func (s *queryServiceImpl) List(ctx context.Context, actor entity.Actor, kind entity.RequestKind, mine bool) (*appwf.ActionableView, error) {
	role, err := s.engine.ResolveRole(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !mine && seesAll(role) {
		return s.engine.ListActionable(ctx, actor, kind)
	}

	list, err := s.requests.List(ctx, kind, port.RequestFilter{SubmitterID: actor.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrPersistence, kind, err)
	}
	return appwf.Actionable(kind, list, role), nil
}

func (s *queryServiceImpl) Get(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (*RequestDetail, error) {
	role, req, err := s.load(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.history.ListByRequest(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("%w: history %s %s: %v", ErrPersistence, kind, id, err)
	}

	return &RequestDetail{
		Request:     req,
		StatusLabel: req.Status.Label(),
		CanAct:      domainwf.CanAct(req.Status, role),
		Actions:     s.engine.AvailableActions(req.Status, role),
		History:     entries,
	}, nil
}

func (s *queryServiceImpl) History(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) ([]*entity.HistoryEntry, error) {
	if _, _, err := s.load(ctx, actor, kind, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("%w: history %s %s: %v", ErrPersistence, kind, id, err)
	}
	return entries, nil
}

// load fetches a request the actor may view. Requests of other submitters
// are reported as missing to employees.
func (s *queryServiceImpl) load(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (domainwf.Role, *entity.RequestSummary, error) {
	role, err := s.engine.ResolveRole(ctx, actor)
	if err != nil {
		return "", nil, err
	}

	req, err := s.requests.Get(ctx, kind, id)
	if err != nil {
		return "", nil, fmt.Errorf("%w: load %s %s: %v", ErrPersistence, kind, id, err)
	}
	if req == nil || (req.SubmitterID != actor.ID && !seesAll(role)) {
		return "", nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return role, req, nil
}
