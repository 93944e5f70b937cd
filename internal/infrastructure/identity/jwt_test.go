package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

type profileStore struct {
	port.ProfileRepository
	byID    map[string]*entity.Profile
	created []*entity.Profile
}

func (s *profileStore) GetByID(_ context.Context, id string) (*entity.Profile, error) {
	return s.byID[id], nil
}

func (s *profileStore) Create(_ context.Context, p *entity.Profile) error {
	s.created = append(s.created, p)
	s.byID[p.ID] = p
	return nil
}

func newProvider(cfg Config, profiles ...*entity.Profile) (*JWTProvider, *profileStore) {
	store := &profileStore{byID: map[string]*entity.Profile{}}
	for _, p := range profiles {
		store.byID[p.ID] = p
	}
	return NewJWTProvider(cfg, store, zap.NewNop()), store
}

func TestJWTProvider_IssueAndResolve(t *testing.T) {
	mike := &entity.Profile{ID: "u-mike", Email: "mike@example.com", Role: workflow.RoleManager}
	p, _ := newProvider(Config{Secret: "s3cret", Issuer: "approvals"}, mike)

	token, err := p.Issue(mike)
	require.NoError(t, err)

	actor, err := p.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, entity.Actor{ID: "u-mike", Role: workflow.RoleManager}, actor)
}

func TestJWTProvider_RoleIsReadFromProfile(t *testing.T) {
	mike := &entity.Profile{ID: "u-mike", Email: "mike@example.com", Role: workflow.RoleManager}
	p, store := newProvider(Config{Secret: "s3cret"}, mike)

	token, err := p.Issue(mike)
	require.NoError(t, err)

	store.byID["u-mike"] = &entity.Profile{ID: "u-mike", Role: workflow.RoleFinance}

	actor, err := p.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleFinance, actor.Role)
}

func TestJWTProvider_Rejects(t *testing.T) {
	mike := &entity.Profile{ID: "u-mike", Email: "mike@example.com", Role: workflow.RoleManager}
	p, _ := newProvider(Config{Secret: "s3cret", Issuer: "approvals"}, mike)

	other, _ := newProvider(Config{Secret: "other", Issuer: "approvals"})
	forged, err := other.Issue(mike)
	require.NoError(t, err)

	wrongIssuer, _ := newProvider(Config{Secret: "s3cret", Issuer: "elsewhere"})
	foreign, err := wrongIssuer.Issue(mike)
	require.NoError(t, err)

	expiredIssuer, _ := newProvider(Config{Secret: "s3cret", Issuer: "approvals", TTL: time.Minute})
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue(mike)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u-mike",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	ghost := &entity.Profile{ID: "u-ghost"}
	unknown, err := p.Issue(ghost)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"wrong issuer", foreign},
		{"expired", expired},
		{"alg none", unsigned},
		{"no profile", unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Resolve(context.Background(), tt.token)
			if !errors.Is(err, port.ErrNoIdentity) {
				t.Errorf("Resolve() error = %v, want ErrNoIdentity", err)
			}
		})
	}
}

func TestJWTProvider_AutoProvision(t *testing.T) {
	p, store := newProvider(Config{Secret: "s3cret", AutoProvision: true})

	token, err := p.Issue(&entity.Profile{ID: "u-new", Email: "new@example.com", FullName: "New Hire"})
	require.NoError(t, err)

	actor, err := p.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleEmployee, actor.Role)
	require.Len(t, store.created, 1)
	assert.Equal(t, "new@example.com", store.created[0].Email)
}
