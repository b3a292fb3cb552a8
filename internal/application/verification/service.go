package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/id"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/validate"
)

const userUpdateRetries = 3

var (
	errContactChanged = fmt.Errorf("token was issued for a different contact: %w", domain.ErrInvalidToken)
	errNoPhone        = fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
	errGuestAddress   = fmt.Errorf("placeholder guest address cannot be verified: %w", domain.ErrBadRequest)
)

type userRepo interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// Notifier delivers secrets to the user. Failures are surfaced to the caller.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
	SendVerificationSMS(ctx context.Context, phone, code string) error
}

type recorder interface {
	VerificationEvent(purpose domain.Purpose, action domain.AuditAction)
	RateLimited(purpose domain.Purpose)
}

type noopRecorder struct{}

func (noopRecorder) VerificationEvent(domain.Purpose, domain.AuditAction) {}
func (noopRecorder) RateLimited(domain.Purpose)                           {}

// CleanupReport counts what one CleanupExpired pass removed.
type CleanupReport struct {
	Tokens     int `json:"tokens"`
	RateLimits int `json:"rate_limits"`
	AuditLogs  int `json:"audit_logs"`
}

type Service interface {
	SendEmailVerification(ctx context.Context, userID string, meta domain.RequestMeta) error
	VerifyEmail(ctx context.Context, token string, meta domain.RequestMeta) (*domain.User, error)
	SendPhoneVerification(ctx context.Context, userID string, meta domain.RequestMeta) error
	VerifyPhone(ctx context.Context, userID, code string, meta domain.RequestMeta) (*domain.User, error)
	// RequestPasswordReset answers the same way whether or not email is registered.
	RequestPasswordReset(ctx context.Context, email string, meta domain.RequestMeta) error
	// ValidatePasswordResetToken checks a reset link without consuming it.
	ValidatePasswordResetToken(ctx context.Context, email, token string) (userID string, ok bool, err error)
	// ConsumePasswordResetToken redeems the reset token of userID exactly once.
	ConsumePasswordResetToken(ctx context.Context, userID, token string, meta domain.RequestMeta) (bool, error)
	CleanupExpired(ctx context.Context) (CleanupReport, error)
}

// ServiceDeps holds all dependencies for the verification service.
type ServiceDeps struct {
	Users    userRepo
	Tokens   *TokenStore
	Limiter  *RateLimiter
	Audit    *AuditLog
	Notifier Notifier
	Metrics  recorder
	Now      func() time.Time
}

type service struct {
	users    userRepo
	tokens   *TokenStore
	limiter  *RateLimiter
	audit    *AuditLog
	notifier Notifier
	metrics  recorder
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:    deps.Users,
		tokens:   deps.Tokens,
		limiter:  deps.Limiter,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      deps.Now,
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) SendEmailVerification(ctx context.Context, userID string, meta domain.RequestMeta) error {
	p := domain.PurposeEmailVerification
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	ev := newEvent(p, &u.UserID, u.Email, meta)
	if err := s.checkSendable(u); err != nil {
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return err
	}
	if id.IsGuestEmail(u.Email) {
		s.record(ctx, ev, domain.AuditFailed, errGuestAddress.Error())
		return errGuestAddress
	}
	if u.EmailVerified {
		s.record(ctx, ev, domain.AuditFailed, "already verified")
		return domain.ErrAlreadyVerified
	}
	if err := s.reserve(ctx, ev, u.Email); err != nil {
		return err
	}
	return s.deliver(ctx, ev, u, u.Email, s.notifier.SendVerificationEmail)
}

func (s *service) VerifyEmail(ctx context.Context, token string, meta domain.RequestMeta) (*domain.User, error) {
	p := domain.PurposeEmailVerification
	ev := AuditEvent{Purpose: p, Meta: meta}
	tok, err := s.tokens.Redeem(ctx, token, p, "")
	if tok != nil {
		ev = newEvent(p, &tok.UserID, deref(tok.ContactValue), meta)
	}
	if err != nil {
		s.redeemFailed(ctx, ev, err)
		return nil, err
	}
	u, err := s.updateUser(ctx, tok.UserID, func(u *domain.User) error {
		if !contactMatches(tok.ContactValue, u.Email) {
			return errContactChanged
		}
		return u.VerifyEmail(s.now().UTC())
	})
	if err != nil {
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return nil, err
	}
	s.record(ctx, ev, domain.AuditVerified, "")
	return u, nil
}

func (s *service) SendPhoneVerification(ctx context.Context, userID string, meta domain.RequestMeta) error {
	p := domain.PurposePhoneVerification
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	phone := deref(u.Phone)
	ev := newEvent(p, &u.UserID, phone, meta)
	if err := s.checkSendable(u); err != nil {
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return err
	}
	if phone == "" {
		s.record(ctx, ev, domain.AuditFailed, errNoPhone.Error())
		return errNoPhone
	}
	if u.PhoneVerified {
		s.record(ctx, ev, domain.AuditFailed, "already verified")
		return domain.ErrAlreadyVerified
	}
	if err := s.reserve(ctx, ev, phone); err != nil {
		return err
	}
	return s.deliver(ctx, ev, u, phone, s.notifier.SendVerificationSMS)
}

// VerifyPhone redeems a 6-digit code. Guesses are counted per user, since a
// short numeric code is the one secret small enough to brute-force. A guess
// is reserved before the code is checked and handed back unless it was
// wrong, so parallel requests cannot exceed the limit.
func (s *service) VerifyPhone(ctx context.Context, userID, code string, meta domain.RequestMeta) (*domain.User, error) {
	p := domain.PurposePhoneVerification
	ev := AuditEvent{UserID: &userID, Purpose: p, Meta: meta}
	guessKey := "guess:" + userID
	if err := s.reserve(ctx, ev, guessKey); err != nil {
		return nil, err
	}

	tok, err := s.tokens.Redeem(ctx, code, p, userID)
	if tok != nil {
		ev = newEvent(p, &userID, deref(tok.ContactValue), meta)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidToken) {
			s.release(ctx, guessKey, p)
		}
		s.redeemFailed(ctx, ev, err)
		return nil, err
	}
	s.release(ctx, guessKey, p)
	u, err := s.updateUser(ctx, userID, func(u *domain.User) error {
		if !contactMatches(tok.ContactValue, deref(u.Phone)) {
			return errContactChanged
		}
		return u.VerifyPhone(s.now().UTC())
	})
	if err != nil {
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return nil, err
	}
	s.record(ctx, ev, domain.AuditVerified, "")
	return u, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string, meta domain.RequestMeta) error {
	p := domain.PurposePasswordReset
	email, err := validate.Email(email)
	if err != nil {
		return err
	}
	ev := newEvent(p, nil, email, meta)
	// The limit applies before the lookup so unknown and known addresses
	// are throttled identically.
	if err := s.reserve(ctx, ev, email); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.record(ctx, ev, domain.AuditFailed, "unknown email")
		return nil
	}
	if err != nil {
		s.release(ctx, email, p)
		err = domain.Dependency("look up user", err)
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return err
	}
	ev.UserID = &u.UserID
	if u.IsGuest || u.Status == domain.StatusBlocked {
		s.record(ctx, ev, domain.AuditFailed, "account not eligible for reset")
		return nil
	}
	return s.deliver(ctx, ev, u, email, s.notifier.SendPasswordResetEmail)
}

func (s *service) ValidatePasswordResetToken(ctx context.Context, email, token string) (string, bool, error) {
	u, tok, err := s.resetTarget(ctx, email, "", token)
	if err != nil || tok == nil {
		return "", false, err
	}
	return u.UserID, true, nil
}

func (s *service) ConsumePasswordResetToken(ctx context.Context, userID, token string, meta domain.RequestMeta) (bool, error) {
	p := domain.PurposePasswordReset
	ev := AuditEvent{UserID: &userID, Purpose: p, Meta: meta}
	u, tok, err := s.resetTarget(ctx, "", userID, token)
	if err != nil {
		return false, err
	}
	if tok == nil {
		s.record(ctx, ev, domain.AuditFailed, "reset token not valid for this account")
		return false, nil
	}
	ev = newEvent(p, &u.UserID, u.Email, meta)
	if _, err := s.tokens.Redeem(ctx, token, p, userID); err != nil {
		s.redeemFailed(ctx, ev, err)
		if errors.Is(err, domain.ErrDependency) {
			return false, err
		}
		return false, nil
	}
	s.record(ctx, ev, domain.AuditVerified, "")
	return true, nil
}

// resetTarget applies the checks shared by both reset steps without consuming
// anything. A nil token with a nil error means "not valid".
func (s *service) resetTarget(ctx context.Context, email, userID, token string) (*domain.User, *domain.VerificationToken, error) {
	tok, err := s.tokens.Peek(ctx, token, domain.PurposePasswordReset, userID)
	if err != nil {
		if errors.Is(err, domain.ErrDependency) {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	u, err := s.getUser(ctx, tok.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if email != "" && u.Email != validate.NormalizeEmail(email) {
		return nil, nil, nil
	}
	if !contactMatches(tok.ContactValue, u.Email) || u.IsGuest || u.Status == domain.StatusBlocked {
		return nil, nil, nil
	}
	return u, tok, nil
}

func (s *service) CleanupExpired(ctx context.Context) (CleanupReport, error) {
	var r CleanupReport
	var errs []error
	var err error
	if r.Tokens, err = s.tokens.CleanupExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.RateLimits, err = s.limiter.CleanupExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.AuditLogs, err = s.audit.Prune(ctx); err != nil {
		errs = append(errs, err)
	}
	return r, errors.Join(errs...)
}

// checkSendable refuses to message accounts that cannot act on the message.
func (s *service) checkSendable(u *domain.User) error {
	if u.Status == domain.StatusBlocked {
		return domain.ErrAccountBlocked
	}
	return nil
}

// reserve takes a send attempt from the window of subject.
func (s *service) reserve(ctx context.Context, ev AuditEvent, subject string) error {
	if _, err := s.limiter.CheckAndRecord(ctx, subject, ev.Purpose); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			s.metrics.RateLimited(ev.Purpose)
		}
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return err
	}
	return nil
}

// deliver issues a token and dispatches it. On failure the reserved attempt
// is released; a token that was stored but not delivered is left in place.
func (s *service) deliver(ctx context.Context, ev AuditEvent, u *domain.User, contact string, dispatch func(ctx context.Context, to, secret string) error) error {
	tok, err := s.tokens.Issue(ctx, u.UserID, ev.Purpose, &contact)
	if err != nil {
		s.release(ctx, contact, ev.Purpose)
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return err
	}
	if err := dispatch(ctx, contact, tok.Secret); err != nil {
		s.release(ctx, contact, ev.Purpose)
		err = domain.Dependency("dispatch "+string(ev.Purpose), err)
		slog.Warn("verification dispatch failed", "purpose", ev.Purpose, "user_id", u.UserID, "err", err)
		s.record(ctx, ev, domain.AuditFailed, err.Error())
		return err
	}
	s.record(ctx, ev, domain.AuditSent, "")
	return nil
}

func (s *service) release(ctx context.Context, subject string, purpose domain.Purpose) {
	if err := s.limiter.Release(ctx, subject, purpose); err != nil {
		slog.Warn("could not release send attempt", "purpose", purpose, "err", err)
	}
}

func (s *service) record(ctx context.Context, ev AuditEvent, action domain.AuditAction, reason string) {
	ev.Action = action
	ev.Reason = reason
	s.audit.Record(ctx, ev)
	s.metrics.VerificationEvent(ev.Purpose, action)
}

func (s *service) redeemFailed(ctx context.Context, ev AuditEvent, err error) {
	action := domain.AuditFailed
	if errors.Is(err, domain.ErrExpired) {
		action = domain.AuditExpired
	}
	s.record(ctx, ev, action, err.Error())
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

// updateUser re-reads and re-applies mutate when a concurrent write wins the
// optimistic lock.
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

func newEvent(p domain.Purpose, userID *string, contact string, meta domain.RequestMeta) AuditEvent {
	ev := AuditEvent{UserID: userID, Purpose: p, Meta: meta}
	if contact == "" {
		return ev
	}
	if p == domain.PurposePhoneVerification {
		ev.Phone = &contact
	} else {
		ev.Email = &contact
	}
	return ev
}

// contactMatches binds a token to the address it was sent to. Tokens issued
// without a contact value match any address.
func contactMatches(tokenContact *string, current string) bool {
	return tokenContact == nil || *tokenContact == current
}
