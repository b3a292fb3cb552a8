package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/config"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string           `json:"user_id"`
	Email  string           `json:"email"`
	Role   string           `json:"role"`
	Kind   domain.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 session tokens. Access and refresh
// tokens use independent secrets.
type Provider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	return &Provider{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.TokenIssuer,
		now:           time.Now,
	}, nil
}

func (p *Provider) secret(kind domain.TokenKind) ([]byte, time.Duration, bool) {
	switch kind {
	case domain.TokenAccess:
		return p.accessSecret, p.accessTTL, true
	case domain.TokenRefresh:
		return p.refreshSecret, p.refreshTTL, true
	}
	return nil, 0, false
}

// Issue signs a token of kind for u and returns it with its expiry.
func (p *Provider) Issue(u *domain.User, kind domain.TokenKind) (string, time.Time, error) {
	key, ttl, ok := p.secret(kind)
	if !ok {
		return "", time.Time{}, fmt.Errorf("issue token: unknown kind %q", kind)
	}
	now := p.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: u.UserID,
		Email:  u.Email,
		Role:   u.Role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			Subject:   u.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// IssuePair mints a fresh access and refresh token for u.
func (p *Provider) IssuePair(u *domain.User) (domain.TokenPair, error) {
	access, accessExp, err := p.Issue(u, domain.TokenAccess)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := p.Issue(u, domain.TokenRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Validate verifies tokenStr and requires it to be of kind want.
// The signing secret is chosen by the token's own kind claim, so a valid
// token of the other kind reports ErrWrongTokenKind rather than a bad signature.
func (p *Provider) Validate(tokenStr string, want domain.TokenKind) (*domain.Principal, error) {
	if tokenStr == "" {
		return nil, domain.ErrInvalidToken
	}
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		c, ok := t.Claims.(*Claims)
		if !ok {
			return nil, domain.ErrInvalidToken
		}
		key, _, ok := p.secret(c.Kind)
		if !ok {
			return nil, domain.ErrInvalidToken
		}
		return key, nil
	}, opts...)
	if err != nil {
		return nil, mapError(err)
	}
	if claims.Kind != want {
		return nil, domain.ErrWrongTokenKind
	}
	if claims.UserID == "" {
		return nil, domain.ErrInvalidToken
	}

	pr := &domain.Principal{
		TokenID: claims.ID,
		UserID:  claims.UserID,
		Email:   claims.Email,
		Role:    claims.Role,
		Kind:    claims.Kind,
	}
	if claims.IssuedAt != nil {
		pr.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		pr.ExpiresAt = claims.ExpiresAt.Time
	}
	return pr, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.ErrInvalidSignature
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
}
