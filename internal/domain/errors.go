package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrDependency   = errors.New("dependency failure")
)

// Specific failure kinds. Each wraps exactly one category above.
var (
	ErrEmptyInput   = fmt.Errorf("empty input: %w", ErrBadRequest)
	ErrInvalidEmail = fmt.Errorf("invalid email: %w", ErrBadRequest)
	ErrWeakPassword = fmt.Errorf("password too weak: %w", ErrBadRequest)

	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	ErrInvalidSignature   = fmt.Errorf("invalid token signature: %w", ErrUnauthorized)
	ErrWrongTokenKind     = fmt.Errorf("wrong token kind: %w", ErrUnauthorized)

	ErrAccountBlocked  = fmt.Errorf("account blocked: %w", ErrForbidden)
	ErrAccountInactive = fmt.Errorf("account inactive: %w", ErrForbidden)
	ErrGuestAccount    = fmt.Errorf("not allowed for guest accounts: %w", ErrForbidden)

	ErrEmailTaken             = fmt.Errorf("email already taken: %w", ErrConflict)
	ErrEmailAlreadyRegistered = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrAlreadyVerified        = fmt.Errorf("already verified: %w", ErrConflict)

	ErrTokenExpired     = fmt.Errorf("token expired: %w", ErrExpired)
	ErrTokenAlreadyUsed = fmt.Errorf("token already used: %w", ErrAlreadyUsed)
)

// RateLimitedError is returned when a send attempt exceeds its window quota.
type RateLimitedError struct {
	ResetIn time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, try again in %d seconds", e.ResetInSeconds())
}

// ResetInSeconds rounds the remaining window up to whole seconds.
func (e *RateLimitedError) ResetInSeconds() int {
	return int(math.Ceil(e.ResetIn.Seconds()))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// WeakPasswordError carries the strength feedback that caused the rejection.
type WeakPasswordError struct {
	Score    int
	Feedback []string
}

func (e *WeakPasswordError) Error() string {
	if len(e.Feedback) == 0 {
		return ErrWeakPassword.Error()
	}
	return fmt.Sprintf("password too weak: %s", strings.Join(e.Feedback, "; "))
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword || target == ErrBadRequest
}

// Dependency wraps a collaborator failure (storage, notifier) so callers can
// match both ErrDependency and the underlying cause.
func Dependency(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}
