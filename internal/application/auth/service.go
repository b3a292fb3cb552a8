package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/id"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/password"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/validate"
)

const (
	userUpdateRetries = 3
	// dummyPassword is hashed once so that logins for unknown accounts spend
	// the same bcrypt time as real ones.
	dummyPassword = "timing-equalizer-not-a-credential"
)

var (
	errResetNotConfigured  = errors.New("password reset is not configured")
	errGoogleNotConfigured = fmt.Errorf("google sign-in is not configured: %w", domain.ErrForbidden)
	errGoogleUnverified    = fmt.Errorf("google email is not verified: %w", domain.ErrUnauthorized)
	errGoogleMismatch      = fmt.Errorf("account is linked to a different google identity: %w", domain.ErrUnauthorized)
	errForeignToken        = fmt.Errorf("refresh token belongs to another user: %w", domain.ErrForbidden)
)

type userRepo interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	NeedsRehash(hash string) bool
}

type tokenSigner interface {
	IssuePair(u *domain.User) (domain.TokenPair, error)
	Validate(token string, want domain.TokenKind) (*domain.Principal, error)
}

type identityVerifier interface {
	Verify(ctx context.Context, token string) (*domain.FederatedIdentity, error)
}

// ResetTokens is the verification side of the password-reset protocol.
type ResetTokens interface {
	ValidatePasswordResetToken(ctx context.Context, email, token string) (string, bool, error)
	ConsumePasswordResetToken(ctx context.Context, userID, token string, meta domain.RequestMeta) (bool, error)
}

type recorder interface {
	AuthAttempt(operation string, err error)
}

type noopRecorder struct{}

func (noopRecorder) AuthAttempt(string, error) {}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	// LoginAsGuest finds or creates the guest account for email. A nil email
	// always creates a new guest with a placeholder address.
	LoginAsGuest(ctx context.Context, email *string) (*domain.AuthResult, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*domain.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	ValidateToken(ctx context.Context, accessToken string) (*domain.Principal, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
	// CompletePasswordReset checks the reset link, consumes it and sets the new password.
	CompletePasswordReset(ctx context.Context, email, token, newPassword string, meta domain.RequestMeta) error
	Logout(ctx context.Context, userID string, refreshToken *string) error
	SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error)
}

// ServiceDeps holds all dependencies for the auth service.
// Google and ResetTokens are optional.
type ServiceDeps struct {
	Users       userRepo
	Hasher      passwordHasher
	Signer      tokenSigner
	Google      identityVerifier
	ResetTokens ResetTokens
	Metrics     recorder
	Now         func() time.Time
}

type service struct {
	users       userRepo
	hasher      passwordHasher
	signer      tokenSigner
	google      identityVerifier
	resetTokens ResetTokens
	metrics     recorder
	now         func() time.Time
	dummyHash   func() string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:       deps.Users,
		hasher:      deps.Hasher,
		signer:      deps.Signer,
		google:      deps.Google,
		resetTokens: deps.ResetTokens,
		metrics:     deps.Metrics,
		now:         deps.Now,
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.dummyHash = sync.OnceValue(func() string {
		h, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Error("could not prepare dummy password hash", "err", err)
		}
		return h
	})
	return s
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (res *domain.AuthResult, err error) {
	defer func() { s.metrics.AuthAttempt("register", err) }()

	email, err := validate.Email(req.Email)
	if err != nil {
		return nil, err
	}
	if req.Phone != nil {
		if err := validate.Phone(*req.Phone); err != nil {
			return nil, err
		}
	}
	// A registered address is reported before any password feedback.
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && !existing.IsGuest:
		return nil, domain.ErrEmailTaken
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, domain.Dependency("look up user", err)
	}
	if err := password.CheckStrength(req.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	// A concurrent guest login or registration can claim the address between
	// the lookup and the write; re-read and decide again.
	for range userUpdateRetries {
		existing, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil && !existing.IsGuest:
			return nil, domain.ErrEmailTaken
		case err == nil:
			if err := existing.CheckStatus(); errors.Is(err, domain.ErrAccountBlocked) {
				return nil, err
			}
			existing.ConvertFromGuest(hash, req.Phone, s.now().UTC())
			err = s.users.Update(ctx, existing)
			if err == nil {
				slog.Info("guest converted", "user_id", existing.UserID)
				return s.issue(existing)
			}
		case errors.Is(err, domain.ErrNotFound):
			u := s.newUser(email, req.Phone)
			u.PasswordHash = hash
			u.Role = domain.RoleCustomer
			u.AuthProvider = "local"
			err = s.users.Create(ctx, u)
			if err == nil {
				slog.Info("user registered", "user_id", u.UserID)
				return s.issue(u)
			}
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, domain.Dependency("register user", err)
		}
	}
	return nil, domain.ErrEmailTaken
}

func (s *service) Login(ctx context.Context, email, pw string) (res *domain.AuthResult, err error) {
	defer func() { s.metrics.AuthAttempt("login", err) }()

	u, err := s.users.GetByEmail(ctx, validate.NormalizeEmail(email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Dependency("look up user", err)
	}
	if u == nil || !u.HasPassword() {
		s.hasher.Verify(pw, s.dummyHash())
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(pw, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if err := u.CheckStatus(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u.LastLoginAt = &now
	if s.hasher.NeedsRehash(u.PasswordHash) {
		if hash, herr := s.hasher.Hash(pw); herr == nil {
			u.PasswordHash = hash
		} else {
			slog.Warn("password rehash failed", "user_id", u.UserID, "err", herr)
		}
	}
	if uerr := s.users.Update(ctx, u); uerr != nil {
		slog.Warn("could not record login", "user_id", u.UserID, "err", uerr)
	}
	return s.issue(u)
}

func (s *service) LoginAsGuest(ctx context.Context, email *string) (res *domain.AuthResult, err error) {
	defer func() { s.metrics.AuthAttempt("guest_login", err) }()

	if email == nil || *email == "" {
		u := s.newGuest(id.GuestEmail())
		if err := s.users.Create(ctx, u); err != nil {
			return nil, domain.Dependency("create guest", err)
		}
		return s.issue(u)
	}

	addr, err := validate.Email(*email)
	if err != nil {
		return nil, err
	}
	for range userUpdateRetries {
		existing, err := s.users.GetByEmail(ctx, addr)
		switch {
		case err == nil && !existing.IsGuest:
			return nil, domain.ErrEmailAlreadyRegistered
		case err == nil:
			if err := existing.CheckStatus(); err != nil {
				return nil, err
			}
			return s.issue(existing)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, domain.Dependency("look up user", err)
		}
		u := s.newGuest(addr)
		err = s.users.Create(ctx, u)
		if err == nil {
			return s.issue(u)
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, domain.Dependency("create guest", err)
		}
	}
	return nil, fmt.Errorf("guest login for %s: %w", addr, domain.ErrConflict)
}

// LoginWithGoogle signs in with a Google ID token, linking or creating the
// account that owns the token's verified email.
func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (res *domain.AuthResult, err error) {
	defer func() { s.metrics.AuthAttempt("google_login", err) }()

	if s.google == nil {
		return nil, errGoogleNotConfigured
	}
	ident, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if !ident.EmailVerified {
		return nil, errGoogleUnverified
	}
	email := validate.NormalizeEmail(ident.Email)

	for range userUpdateRetries {
		u, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			u = s.newUser(email, nil)
			u.Role = domain.RoleCustomer
			u.AuthProvider = ident.Provider
			u.GoogleSub = ident.Subject
			u.EmailVerified = true
			err = s.users.Create(ctx, u)
			if err == nil {
				return s.issue(u)
			}
			if !errors.Is(err, domain.ErrConflict) {
				return nil, domain.Dependency("create user", err)
			}
			continue
		}
		if err != nil {
			return nil, domain.Dependency("look up user", err)
		}
		if u.GoogleSub != "" && u.GoogleSub != ident.Subject {
			return nil, errGoogleMismatch
		}
		if err := u.CheckStatus(); err != nil {
			return nil, err
		}
		now := s.now().UTC()
		if u.IsGuest {
			u.IsGuest = false
			u.Role = domain.RoleCustomer
			u.AuthProvider = ident.Provider
		}
		u.GoogleSub = ident.Subject
		u.EmailVerified = true
		u.LastLoginAt = &now
		u.UpdatedAt = now
		err = s.users.Update(ctx, u)
		if err == nil {
			return s.issue(u)
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, domain.Dependency("link google account", err)
		}
	}
	return nil, fmt.Errorf("google login for %s: %w", email, domain.ErrConflict)
}

// RefreshToken rotates both tokens. The presented refresh token stays valid
// until it expires.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (res *domain.AuthResult, err error) {
	defer func() { s.metrics.AuthAttempt("refresh", err) }()

	p, err := s.signer.Validate(refreshToken, domain.TokenRefresh)
	if err != nil {
		return nil, err
	}
	u, err := s.activeUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// ValidateToken checks an access token and re-reads the user so that a block
// takes effect on the next request.
func (s *service) ValidateToken(ctx context.Context, accessToken string) (*domain.Principal, error) {
	p, err := s.signer.Validate(accessToken, domain.TokenAccess)
	if err != nil {
		return nil, err
	}
	u, err := s.activeUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	p.Role = u.Role
	p.Email = u.Email
	return p, nil
}

func (s *service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsGuest {
		return domain.ErrGuestAccount
	}
	if !s.hasher.Verify(currentPassword, u.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if err := password.CheckStrength(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if err := password.CheckStrength(newPassword); err != nil {
		return err
	}
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsGuest {
		return domain.ErrGuestAccount
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *service) CompletePasswordReset(ctx context.Context, email, token, newPassword string, meta domain.RequestMeta) error {
	if s.resetTokens == nil {
		return errResetNotConfigured
	}
	userID, ok, err := s.resetTokens.ValidatePasswordResetToken(ctx, email, token)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidToken
	}
	// Weak passwords are rejected before the token is spent.
	if err := password.CheckStrength(newPassword); err != nil {
		return err
	}
	ok, err = s.resetTokens.ConsumePasswordResetToken(ctx, userID, token, meta)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidToken
	}
	if err := s.ResetPassword(ctx, userID, newPassword); err != nil {
		slog.Error("reset token consumed but password not updated", "user_id", userID, "err", err)
		return err
	}
	slog.Info("password reset completed", "user_id", userID)
	return nil
}

// Logout records the logout time. Issued tokens are not revoked.
func (s *service) Logout(ctx context.Context, userID string, refreshToken *string) error {
	if refreshToken != nil {
		p, err := s.signer.Validate(*refreshToken, domain.TokenRefresh)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return errForeignToken
		}
	}
	_, err := s.updateUser(ctx, userID, func(u *domain.User) error {
		now := s.now().UTC()
		u.LastLogoutAt = &now
		return nil
	})
	return err
}

func (s *service) SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrBadRequest)
	}
	u, err := s.updateUser(ctx, userID, func(u *domain.User) error {
		u.SetStatus(status, s.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("user status changed", "user_id", userID, "status", status)
	return u, nil
}

func (s *service) setPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	_, err = s.updateUser(ctx, userID, func(u *domain.User) error {
		if u.IsGuest {
			return domain.ErrGuestAccount
		}
		u.PasswordHash = hash
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	return err
}

func (s *service) issue(u *domain.User) (*domain.AuthResult, error) {
	pair, err := s.signer.IssuePair(u)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &domain.AuthResult{Tokens: pair, User: u}, nil
}

// activeUser resolves a token subject. A deleted user makes the token invalid.
func (s *service) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.getUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if err := u.CheckStatus(); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) getUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrEmptyInput
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Dependency("get user", err)
	}
	return u, err
}

func (s *service) updateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (*domain.User, error) {
	for range userUpdateRetries {
		u, err := s.getUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := mutate(u); err != nil {
			return nil, err
		}
		err = s.users.Update(ctx, u)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, domain.Dependency("update user", err)
		}
	}
	return nil, fmt.Errorf("update user %s: %w", userID, domain.ErrConflict)
}

func (s *service) newUser(email string, phone *string) *domain.User {
	now := s.now().UTC()
	return &domain.User{
		UserID:      id.New(),
		Email:       email,
		Phone:       phone,
		Status:      domain.StatusActive,
		LastLoginAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *service) newGuest(email string) *domain.User {
	u := s.newUser(email, nil)
	u.IsGuest = true
	u.Role = domain.RoleGuest
	u.AuthProvider = "guest"
	return u
}
