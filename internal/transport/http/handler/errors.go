package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

// httpError maps domain error categories to status codes in one place.
// Dependency and unknown errors are logged and answered without details.
func httpError(w http.ResponseWriter, err error) {
	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		secs := rl.ResetInSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, MessageEnvelope{Error: rl.Error(), RetryAfter: secs})
		return
	}
	var weak *domain.WeakPasswordError
	if errors.As(err, &weak) {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: domain.ErrWeakPassword.Error(), Feedback: weak.Feedback})
		return
	}

	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		// Never reveal which credential check failed.
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrExpired), errors.Is(err, domain.ErrAlreadyUsed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrDependency):
		slog.Error("dependency failure", "err", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
