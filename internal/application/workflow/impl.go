package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type engineImpl struct {
	requests   port.RequestRepository
	profiles   port.ProfileRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	lifecycle  *domainwf.Lifecycle
	dispatcher dispatcher.Dispatcher
	metrics    port.Metrics
	tracer     trace.Tracer
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher that receives committed transitions
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithMetrics sets the recorder for transition outcomes
func WithMetrics(m port.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithTracer overrides the tracer used for action spans
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *engineImpl) {
		e.tracer = t
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides time.Now for history timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a workflow engine over the given record store
func NewEngine(
	requests port.RequestRepository,
	profiles port.ProfileRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	lifecycle *domainwf.Lifecycle,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		requests:  requests,
		profiles:  profiles,
		history:   history,
		txManager: txManager,
		lifecycle: lifecycle,
		metrics:   port.NopMetrics{},
		tracer:    otel.Tracer("github.com/garyjia/approval-workflow/workflow"),
		logger:    nopLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Approve(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (*TransitionResult, error) {
	return e.Act(ctx, actor, kind, id, domainwf.TriggerApprove)
}

func (e *engineImpl) Reject(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string) (*TransitionResult, error) {
	return e.Act(ctx, actor, kind, id, domainwf.TriggerReject)
}

func (e *engineImpl) Act(ctx context.Context, actor entity.Actor, kind entity.RequestKind, id string, trigger domainwf.Trigger) (result *TransitionResult, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow."+trigger.String(), trace.WithAttributes(
		attribute.String("request.kind", string(kind)),
		attribute.String("request.id", id),
		attribute.String("actor.id", actor.ID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Reason(err))
			e.metrics.ObserveActionError(kind, trigger, Reason(err))
		} else {
			span.SetAttributes(attribute.String("request.to", result.To.String()))
			span.SetStatus(codes.Ok, "")
			e.metrics.ObserveTransition(kind, trigger, result.To)
		}
		span.End()
	}()

	if !trigger.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, trigger)
	}

	// 1. load
	req, err := e.requests.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s %s: %v", ErrPersistence, kind, id, err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}

	// 2. resolve role for this action
	role, err := e.ResolveRole(ctx, actor)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("actor.role", role.String()))

	// 3. authorize
	if !domainwf.CanAct(req.Status, role) {
		e.logger.Info("Action denied",
			"kind", kind, "request_id", id, "actor_id", actor.ID,
			"role", role, "status", req.Status, "action", trigger)
		return nil, fmt.Errorf("%w: %s cannot %s a %s request", ErrForbidden, role, trigger, req.Status.Label())
	}

	// 4. compute
	to, err := e.lifecycle.Transition(ctx, req.Status, trigger, domainwf.Input{Role: role, Amount: req.Amount})
	if err != nil {
		// CanAct passed, so only a ladder without a tier for this role gets here.
		return nil, fmt.Errorf("%w: %v", ErrPolicy, err)
	}

	// 5. persist atomically with the audit entry
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requests.CompareAndSwapStatus(txCtx, kind, id, req.Status, to); err != nil {
			return err
		}
		return e.history.Create(txCtx, &entity.HistoryEntry{
			Kind:       kind,
			RequestID:  id,
			ActorID:    actor.ID,
			ActorRole:  role,
			Action:     trigger,
			FromStatus: req.Status,
			ToStatus:   to,
			CreatedAt:  e.now(),
		})
	})
	if err != nil {
		if errors.Is(err, port.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: %s %s is no longer %s", ErrConflict, kind, id, req.Status)
		}
		e.logger.Error("Failed to persist transition",
			"kind", kind, "request_id", id, "from", req.Status, "to", to, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result = &TransitionResult{
		Kind:      kind,
		ID:        id,
		Action:    trigger,
		From:      req.Status,
		To:        to,
		Escalated: trigger == domainwf.TriggerApprove && domainwf.Escalates(to),
		Request:   req.WithStatus(to),
	}
	if result.Escalated {
		result.NextRole, _ = domainwf.Owner(to)
	}

	e.logger.Info("Request transitioned",
		"kind", kind, "request_id", id, "actor_id", actor.ID,
		"from", result.From, "to", result.To)

	// 6. best-effort notification
	e.emit(ctx, actor, role, result)

	return result, nil
}

func (e *engineImpl) ResolveRole(ctx context.Context, actor entity.Actor) (domainwf.Role, error) {
	if actor.IsZero() {
		return "", ErrUnauthenticated
	}
	profile, err := e.profiles.GetByID(ctx, actor.ID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve profile %s: %v", ErrPersistence, actor.ID, err)
	}
	if profile == nil {
		return "", fmt.Errorf("%w: no profile for %s", ErrUnauthenticated, actor.ID)
	}
	return profile.Role, nil
}

func (e *engineImpl) AvailableActions(status domainwf.State, role domainwf.Role) []domainwf.Trigger {
	return e.lifecycle.Actions(status, role)
}

func (e *engineImpl) ListActionable(ctx context.Context, actor entity.Actor, kind entity.RequestKind) (*ActionableView, error) {
	role, err := e.ResolveRole(ctx, actor)
	if err != nil {
		return nil, err
	}
	list, err := e.requests.List(ctx, kind, port.RequestFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrPersistence, kind, err)
	}
	return Actionable(kind, list, role), nil
}

func (e *engineImpl) emit(ctx context.Context, actor entity.Actor, role domainwf.Role, r *TransitionResult) {
	if e.dispatcher == nil {
		return
	}

	typ := event.TypeRequestApproved
	switch {
	case r.To == domainwf.StateRejected:
		typ = event.TypeRequestRejected
	case r.Escalated:
		typ = event.TypeRequestEscalated
	}

	payload := map[string]interface{}{
		event.KeyFromStatus:  r.From.String(),
		event.KeyToStatus:    r.To.String(),
		event.KeyAmount:      r.Request.Amount,
		event.KeySubmitterID: r.Request.SubmitterID,
		event.KeyTitle:       r.Request.Title,
		event.KeyActorRole:   role.String(),
	}
	if r.NextRole != "" {
		payload[event.KeyNextRole] = r.NextRole.String()
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(typ, string(r.Kind), r.ID, actor.ID, payload))
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
