package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/verification"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func authResult(args mock.Arguments) (*domain.AuthResult, error) {
	if r, _ := args.Get(0).(*domain.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func userResult(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error) {
	return authResult(m.Called(ctx, req))
}
func (m *mockAuthSvc) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	return authResult(m.Called(ctx, email, password))
}
func (m *mockAuthSvc) LoginAsGuest(ctx context.Context, email *string) (*domain.AuthResult, error) {
	return authResult(m.Called(ctx, email))
}
func (m *mockAuthSvc) LoginWithGoogle(ctx context.Context, idToken string) (*domain.AuthResult, error) {
	return authResult(m.Called(ctx, idToken))
}
func (m *mockAuthSvc) RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	return authResult(m.Called(ctx, refreshToken))
}
func (m *mockAuthSvc) ValidateToken(ctx context.Context, accessToken string) (*domain.Principal, error) {
	args := m.Called(ctx, accessToken)
	if p, _ := args.Get(0).(*domain.Principal); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return userResult(m.Called(ctx, userID))
}
func (m *mockAuthSvc) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}
func (m *mockAuthSvc) ResetPassword(ctx context.Context, userID, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}
func (m *mockAuthSvc) CompletePasswordReset(ctx context.Context, email, token, newPassword string, meta domain.RequestMeta) error {
	return m.Called(ctx, email, token, newPassword, meta).Error(0)
}
func (m *mockAuthSvc) Logout(ctx context.Context, userID string, refreshToken *string) error {
	return m.Called(ctx, userID, refreshToken).Error(0)
}
func (m *mockAuthSvc) SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error) {
	return userResult(m.Called(ctx, userID, status))
}

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) SendEmailVerification(ctx context.Context, userID string, meta domain.RequestMeta) error {
	return m.Called(ctx, userID, meta).Error(0)
}
func (m *mockVerificationSvc) VerifyEmail(ctx context.Context, token string, meta domain.RequestMeta) (*domain.User, error) {
	return userResult(m.Called(ctx, token, meta))
}
func (m *mockVerificationSvc) SendPhoneVerification(ctx context.Context, userID string, meta domain.RequestMeta) error {
	return m.Called(ctx, userID, meta).Error(0)
}
func (m *mockVerificationSvc) VerifyPhone(ctx context.Context, userID, code string, meta domain.RequestMeta) (*domain.User, error) {
	return userResult(m.Called(ctx, userID, code, meta))
}
func (m *mockVerificationSvc) RequestPasswordReset(ctx context.Context, email string, meta domain.RequestMeta) error {
	return m.Called(ctx, email, meta).Error(0)
}
func (m *mockVerificationSvc) ValidatePasswordResetToken(ctx context.Context, email, token string) (string, bool, error) {
	args := m.Called(ctx, email, token)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (m *mockVerificationSvc) ConsumePasswordResetToken(ctx context.Context, userID, token string, meta domain.RequestMeta) (bool, error) {
	args := m.Called(ctx, userID, token, meta)
	return args.Bool(0), args.Error(1)
}
func (m *mockVerificationSvc) CleanupExpired(ctx context.Context) (verification.CleanupReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(verification.CleanupReport), args.Error(1)
}

// --- helpers ---

func jsonReq(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	r.Header.Set("Content-Type", "application/json")
	return r
}

// asUser injects an authenticated principal the way middleware.Auth does.
func asUser(r *http.Request, userID string) *http.Request {
	p := &domain.Principal{UserID: userID, Role: domain.RoleCustomer, Kind: domain.TokenAccess}
	return r.WithContext(middleware.WithPrincipal(r.Context(), p))
}

func withChiParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withChiID(r *http.Request, id string) *http.Request { return withChiParam(r, "id", id) }
