package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/approval-workflow/internal/application/port"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Errors shared with the workflow engine so callers map one taxonomy
var (
	ErrForbidden       = appwf.ErrForbidden
	ErrUnauthenticated = appwf.ErrUnauthenticated
	ErrNotFound        = appwf.ErrNotFound
	ErrPersistence     = appwf.ErrPersistence

	// ErrValidation wraps input that failed field validation
	ErrValidation = errors.New("validation failed")
)

// requireProfile resolves the acting profile or fails as unauthenticated
func requireProfile(ctx context.Context, profiles port.ProfileRepository, actor entity.Actor) (*entity.Profile, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	p, err := profiles.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %v", ErrPersistence, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no profile for %s", ErrUnauthenticated, actor.ID)
	}
	return p, nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
