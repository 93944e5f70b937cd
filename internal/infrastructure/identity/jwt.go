package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Config holds bearer token settings
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
	// AutoProvision creates an employee profile for a verified token whose
	// subject has no profile yet
	AutoProvision bool
}

// Claims is the token payload. The subject is the profile id.
type Claims struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 bearer tokens and resolves the caller's profile
type JWTProvider struct {
	cfg      Config
	profiles port.ProfileRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewJWTProvider creates a new JWTProvider
func NewJWTProvider(cfg Config, profiles port.ProfileRepository, logger *zap.Logger) *JWTProvider {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &JWTProvider{
		cfg:      cfg,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve verifies the token and returns the actor with its current role
func (p *JWTProvider) Resolve(ctx context.Context, token string) (entity.Actor, error) {
	if token == "" {
		return entity.Actor{}, port.ErrNoIdentity
	}

	claims, err := p.Parse(token)
	if err != nil {
		return entity.Actor{}, err
	}

	profile, err := p.profiles.GetByID(ctx, claims.Subject)
	if err != nil {
		return entity.Actor{}, fmt.Errorf("resolve profile %s: %w", claims.Subject, err)
	}
	if profile == nil {
		if !p.cfg.AutoProvision || claims.Email == "" {
			return entity.Actor{}, fmt.Errorf("%w: no profile for %s", port.ErrNoIdentity, claims.Subject)
		}
		profile, err = p.provision(ctx, claims)
		if err != nil {
			return entity.Actor{}, err
		}
	}

	return profile.Actor(), nil
}

// Parse verifies signature, issuer and expiry and returns the claims
func (p *JWTProvider) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(p.cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", port.ErrNoIdentity)
		}
		return nil, fmt.Errorf("%w: %v", port.ErrNoIdentity, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", port.ErrNoIdentity)
	}
	return claims, nil
}

// Issue signs a token for a profile
func (p *JWTProvider) Issue(profile *entity.Profile) (string, error) {
	now := p.now()
	claims := Claims{
		Email:    profile.Email,
		FullName: profile.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.cfg.Secret))
}

func (p *JWTProvider) provision(ctx context.Context, claims *Claims) (*entity.Profile, error) {
	profile := &entity.Profile{
		ID:       claims.Subject,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     workflow.RoleEmployee,
	}
	if err := p.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("provision profile %s: %w", claims.Subject, err)
	}

	p.logger.Info("Provisioned profile from token",
		zap.String("user_id", profile.ID),
		zap.String("email", profile.Email))

	return profile, nil
}
