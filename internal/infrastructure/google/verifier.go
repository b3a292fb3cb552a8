package google

import (
	"context"
	"fmt"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"google.golang.org/api/idtoken"
)

// Provider is the FederatedIdentity.Provider value for Google sign-in.
const Provider = "google"

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID, validate: idtoken.Validate}
}

// Verify validates the Google ID token and returns the identity it asserts.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*domain.FederatedIdentity, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("google sign-in is not configured: %w", domain.ErrForbidden)
	}
	p, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	return identityFromPayload(p)
}

func identityFromPayload(p *idtoken.Payload) (*domain.FederatedIdentity, error) {
	email, _ := p.Claims["email"].(string)
	if p.Subject == "" || email == "" {
		return nil, fmt.Errorf("google token lacks subject or email: %w", domain.ErrUnauthorized)
	}
	verified, _ := p.Claims["email_verified"].(bool)
	return &domain.FederatedIdentity{
		Provider:      Provider,
		Subject:       p.Subject,
		Email:         email,
		EmailVerified: verified,
	}, nil
}
