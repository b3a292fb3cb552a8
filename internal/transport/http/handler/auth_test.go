package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleResult() *domain.AuthResult {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.AuthResult{
		Tokens: domain.TokenPair{AccessToken: "acc", AccessExpiresAt: exp, RefreshToken: "ref", RefreshExpiresAt: exp},
		User:   &domain.User{UserID: "u1", Email: "a@x.com", PasswordHash: "secret-hash"},
	}
}

func TestRegister_Created(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, domain.RegisterRequest{Email: "a@x.com", Password: "Aa1!aaaa"}).Return(sampleResult(), nil)

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Register(rr, jsonReq(http.MethodPost, "/v1/auth/register", `{"email":"a@x.com","password":"Aa1!aaaa"}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	var body AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "acc", body.AccessToken)
	assert.Equal(t, "ref", body.RefreshToken)
	assert.Equal(t, "u1", body.User.UserID)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
}

func TestRegister_InvalidBody(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewAuthHandler(svc)

	for _, body := range []string{"not-json", `{"email":"a@x.com"}`, `{"email":"bad","password":"x"}`, `{"email":"a@x.com","password":"x","extra":1}`} {
		rr := httptest.NewRecorder()
		h.Register(rr, jsonReq(http.MethodPost, "/v1/auth/register", body))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_WeakPasswordFeedback(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).
		Return(nil, &domain.WeakPasswordError{Score: 2, Feedback: []string{"add an uppercase letter"}})

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Register(rr, jsonReq(http.MethodPost, "/", `{"email":"a@x.com","password":"password"}`))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body MessageEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{"add an uppercase letter"}, body.Feedback)
}

func TestRegister_EmailTaken(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrEmailTaken)

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Register(rr, jsonReq(http.MethodPost, "/", `{"email":"a@x.com","password":"Aa1!aaaa"}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLogin(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, "a@x.com", "Aa1!aaaa").Return(sampleResult(), nil)
	svc.On("Login", mock.Anything, "a@x.com", "wrong").Return(nil, domain.ErrInvalidCredentials)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/", `{"email":"a@x.com","password":"Aa1!aaaa"}`))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/", `{"email":"a@x.com","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"invalid credentials: unauthorized"}`, rr.Body.String())
}

func TestLogin_Blocked(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrAccountBlocked)

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Login(rr, jsonReq(http.MethodPost, "/", `{"email":"a@x.com","password":"Aa1!aaaa"}`))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestGuest_EmptyBody(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("LoginAsGuest", mock.Anything, (*string)(nil)).Return(sampleResult(), nil)

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Guest(rr, jsonReq(http.MethodPost, "/", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGuest_WithEmail(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("LoginAsGuest", mock.Anything, mock.MatchedBy(func(e *string) bool { return e != nil && *e == "g@x.com" })).
		Return(nil, domain.ErrEmailAlreadyRegistered)

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Guest(rr, jsonReq(http.MethodPost, "/", `{"email":"g@x.com"}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestGoogle(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("LoginWithGoogle", mock.Anything, "id-token").Return(sampleResult(), nil)

	rr := httptest.NewRecorder()
	NewAuthHandler(svc).Google(rr, jsonReq(http.MethodPost, "/", `{"id_token":"id-token"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRefresh(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RefreshToken", mock.Anything, "ref").Return(sampleResult(), nil)
	svc.On("RefreshToken", mock.Anything, "expired").Return(nil, domain.ErrTokenExpired)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Refresh(rr, jsonReq(http.MethodPost, "/", `{"refresh_token":"ref"}`))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Refresh(rr, jsonReq(http.MethodPost, "/", `{"refresh_token":"expired"}`))
	assert.Equal(t, http.StatusGone, rr.Code)

	rr = httptest.NewRecorder()
	h.Refresh(rr, jsonReq(http.MethodPost, "/", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMe(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("GetUser", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Me(rr, asUser(jsonReq(http.MethodGet, "/", ""), "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Me(rr, jsonReq(http.MethodGet, "/", ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Logout", mock.Anything, "u1", (*string)(nil)).Return(nil)
	svc.On("Logout", mock.Anything, "u1", mock.MatchedBy(func(s *string) bool { return s != nil && *s == "other" })).
		Return(domain.ErrForbidden)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Logout(rr, asUser(jsonReq(http.MethodPost, "/", ""), "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Logout(rr, asUser(jsonReq(http.MethodPost, "/", `{"refresh_token":"other"}`), "u1"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestChangePassword(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ChangePassword", mock.Anything, "u1", "old", "Bb2@bbbbbbbb").Return(nil)
	svc.On("ChangePassword", mock.Anything, "u1", "wrong", mock.Anything).Return(domain.ErrInvalidCredentials)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.ChangePassword(rr, asUser(jsonReq(http.MethodPost, "/", `{"current_password":"old","new_password":"Bb2@bbbbbbbb"}`), "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ChangePassword(rr, asUser(jsonReq(http.MethodPost, "/", `{"current_password":"wrong","new_password":"Bb2@bbbbbbbb"}`), "u1"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSetStatus(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SetStatus", mock.Anything, "u2", domain.StatusBlocked).Return(&domain.User{UserID: "u2", Status: domain.StatusBlocked}, nil)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.SetStatus(rr, withChiID(jsonReq(http.MethodPut, "/", `{"status":"blocked"}`), "u2"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.SetStatus(rr, withChiID(jsonReq(http.MethodPut, "/", `{"status":"frozen"}`), "u2"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
