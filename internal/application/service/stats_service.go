package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/approval-workflow/internal/application/port"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// RecentLimit is how many of the user's own requests the home page lists
const RecentLimit = 5

// HomeStats summarises the caller's own requests
type HomeStats struct {
	PendingCount  int                      `json:"pending_count"`
	ApprovedTotal float64                  `json:"approved_total"`
	Recent        []*entity.RequestSummary `json:"recent"`
}

// Dashboard is the approver view over both request kinds
type Dashboard struct {
	Role  domainwf.Role                                `json:"role"`
	Views map[entity.RequestKind]*appwf.ActionableView `json:"views"`
	Total int                                          `json:"actionable_total"`
}

// StatsService builds read-only projections for the home page and dashboards
type StatsService interface {
	Home(ctx context.Context, actor entity.Actor) (*HomeStats, error)
	Dashboard(ctx context.Context, actor entity.Actor) (*Dashboard, error)
	ListMine(ctx context.Context, actor entity.Actor, kind entity.RequestKind) ([]*entity.RequestSummary, error)
}

type statsServiceImpl struct {
	requests port.RequestRepository
	engine   appwf.WorkflowEngine
}

// NewStatsService creates a new StatsService
func NewStatsService(requests port.RequestRepository, engine appwf.WorkflowEngine) StatsService {
	return &statsServiceImpl{requests: requests, engine: engine}
}

func (s *statsServiceImpl) Home(ctx context.Context, actor entity.Actor) (*HomeStats, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}

	stats := &HomeStats{}
	mine := port.RequestFilter{SubmitterID: actor.ID}

	for _, kind := range entity.Kinds {
		pending := mine
		pending.Statuses = domainwf.PendingStates
		n, err := s.requests.Count(ctx, kind, pending)
		if err != nil {
			return nil, fmt.Errorf("%w: count pending: %v", ErrPersistence, err)
		}
		stats.PendingCount += n

		approved := mine
		approved.Statuses = []domainwf.State{domainwf.StateApproved}
		total, err := s.requests.SumAmount(ctx, kind, approved)
		if err != nil {
			return nil, fmt.Errorf("%w: sum approved: %v", ErrPersistence, err)
		}
		stats.ApprovedTotal += total

		recent := mine
		recent.Limit = RecentLimit
		list, err := s.requests.List(ctx, kind, recent)
		if err != nil {
			return nil, fmt.Errorf("%w: recent: %v", ErrPersistence, err)
		}
		stats.Recent = append(stats.Recent, list...)
	}

	sort.SliceStable(stats.Recent, func(i, j int) bool {
		return stats.Recent[i].CreatedAt.After(stats.Recent[j].CreatedAt)
	})
	if len(stats.Recent) > RecentLimit {
		stats.Recent = stats.Recent[:RecentLimit]
	}
	return stats, nil
}

func (s *statsServiceImpl) Dashboard(ctx context.Context, actor entity.Actor) (*Dashboard, error) {
	role, err := s.engine.ResolveRole(ctx, actor)
	if err != nil {
		return nil, err
	}

	filter := port.RequestFilter{}
	if !seesAll(role) {
		filter.SubmitterID = actor.ID
	}

	d := &Dashboard{Role: role, Views: make(map[entity.RequestKind]*appwf.ActionableView, len(entity.Kinds))}
	for _, kind := range entity.Kinds {
		list, err := s.requests.List(ctx, kind, filter)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", ErrPersistence, kind, err)
		}
		view := appwf.Actionable(kind, list, role)
		d.Views[kind] = view
		d.Total += view.Count
	}
	return d, nil
}

func (s *statsServiceImpl) ListMine(ctx context.Context, actor entity.Actor, kind entity.RequestKind) ([]*entity.RequestSummary, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	list, err := s.requests.List(ctx, kind, port.RequestFilter{SubmitterID: actor.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrPersistence, kind, err)
	}
	return list, nil
}
