package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/validate"
)

// maxBodyBytes caps request bodies; every endpoint takes a small JSON object.
const maxBodyBytes = 1 << 16

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
	Feedback   []string `json:"feedback,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
}

// AuthEnvelope wraps every response that signs a user in.
type AuthEnvelope struct {
	AccessToken      string       `json:"access_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             *domain.User `json:"user,omitempty"`
}

// UserEnvelope wraps single-user responses.
type UserEnvelope struct {
	User *domain.User `json:"user"`
}

// ResetTokenEnvelope answers the "is this reset link still valid" check.
type ResetTokenEnvelope struct {
	Valid bool `json:"valid"`
}

func toAuthEnvelope(res *domain.AuthResult) AuthEnvelope {
	return AuthEnvelope{
		AccessToken:      res.Tokens.AccessToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshToken:     res.Tokens.RefreshToken,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		User:             res.User,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrBadRequest)
	}
	return validate.Struct(dst)
}
