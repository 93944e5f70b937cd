package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
)

const profileColumns = "id, email, full_name, role, lark_id, created_at, updated_at"

// ProfileRepository implements port.ProfileRepository
type ProfileRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqldb.DB, logger *zap.Logger) port.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a profile
func (r *ProfileRepository) Create(ctx context.Context, p *entity.Profile) error {
	query := `
		INSERT INTO profiles (id, email, full_name, role, lark_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Role == "" {
		p.Role = workflow.RoleEmployee
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query),
		p.ID, p.Email, p.FullName, string(p.Role), p.LarkID, p.CreatedAt.UTC(), p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create profile", zap.String("id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile, or nil when absent
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a profile by email, or nil when absent
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	return r.getOne(ctx, "email", email)
}

func (r *ProfileRepository) getOne(ctx context.Context, column, value string) (*entity.Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM profiles WHERE %s = ?", profileColumns, column)
	p, err := scanProfile(r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(query), value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get profile", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListOrderedByEmail returns every profile sorted by email
func (r *ProfileRepository) ListOrderedByEmail(ctx context.Context) ([]*entity.Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM profiles ORDER BY email", profileColumns)
	return r.list(ctx, query)
}

// ListByRole returns profiles holding role
func (r *ProfileRepository) ListByRole(ctx context.Context, role workflow.Role) ([]*entity.Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM profiles WHERE role = ? ORDER BY email", profileColumns)
	return r.list(ctx, query, string(role))
}

func (r *ProfileRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Profile, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list profiles", zap.Error(err))
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []*entity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateRole changes a profile's role
func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role workflow.Role) error {
	query := "UPDATE profiles SET role = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query), string(role), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update role", zap.String("id", id), zap.String("role", string(role)), zap.Error(err))
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// CountByRole groups profiles by role
func (r *ProfileRepository) CountByRole(ctx context.Context) (map[workflow.Role]int, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, "SELECT role, COUNT(*) FROM profiles GROUP BY role")
	if err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.Role]int)
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan role count: %w", err)
		}
		counts[workflow.Role(role)] = n
	}
	return counts, rows.Err()
}

func scanProfile(row scanner) (*entity.Profile, error) {
	var (
		p    entity.Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.LarkID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = workflow.Role(role)
	return &p, nil
}

// Verify interface compliance
var _ port.ProfileRepository = (*ProfileRepository)(nil)
