package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHTTPError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", domain.ErrInvalidEmail, http.StatusBadRequest},
		{"weak password", &domain.WeakPasswordError{Score: 1}, http.StatusBadRequest},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"invalid token", domain.ErrInvalidToken, http.StatusUnauthorized},
		{"blocked", domain.ErrAccountBlocked, http.StatusForbidden},
		{"guest", domain.ErrGuestAccount, http.StatusForbidden},
		{"not found", fmt.Errorf("user u1: %w", domain.ErrNotFound), http.StatusNotFound},
		{"conflict", domain.ErrEmailTaken, http.StatusConflict},
		{"expired", domain.ErrTokenExpired, http.StatusGone},
		{"used", domain.ErrTokenAlreadyUsed, http.StatusGone},
		{"rate limited", &domain.RateLimitedError{}, http.StatusTooManyRequests},
		{"dependency", domain.Dependency("users.Get", errors.New("timeout")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			httpError(rr, tc.err)
			assert.Equal(t, tc.want, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHTTPError_HidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, domain.Dependency("users.Get", errors.New("dial tcp 10.0.0.5:8000")))
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")

	rr = httptest.NewRecorder()
	httpError(rr, fmt.Errorf("user 42 missing: %w", domain.ErrNotFound))
	assert.NotContains(t, rr.Body.String(), "42")
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler()

	rr := httptest.NewRecorder()
	h.Ping(rr, withChiParam(httptest.NewRequest(http.MethodGet, "/", nil), "action", "ping"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Ping(rr, withChiParam(httptest.NewRequest(http.MethodGet, "/", nil), "action", "reboot"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
