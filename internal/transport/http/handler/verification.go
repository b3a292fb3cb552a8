package handler

import (
	"net/http"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/auth"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/verification"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/transport/http/middleware"
)

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetCheckRequest struct {
	Email string `json:"email" validate:"required"`
	Token string `json:"token" validate:"required"`
}

type resetCompleteRequest struct {
	Email       string `json:"email" validate:"required"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

// resetRequestedMessage is returned whether or not the address is registered.
const resetRequestedMessage = "if the address is registered, a reset link has been sent"

// VerificationHandler handles email/phone verification and password reset.
type VerificationHandler struct {
	svc  verification.Service
	auth auth.Service
}

func NewVerificationHandler(svc verification.Service, authSvc auth.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc, auth: authSvc}
}

func (h *VerificationHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.SendEmailVerification(r.Context(), p.UserID, middleware.RequestMeta(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "verification email sent"})
}

func (h *VerificationHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(w, r, &req); err != nil {
		httpError(w, err)
		return
	}
	u, err := h.svc.VerifyEmail(r.Context(), req.Token, middleware.RequestMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}

func (h *VerificationHandler) SendPhone(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.SendPhoneVerification(r.Context(), p.UserID, middleware.RequestMeta(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "verification code sent"})
}

func (h *VerificationHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		httpError(w, err)
		return
	}
	u, err := h.svc.VerifyPhone(r.Context(), p.UserID, req.Code, middleware.RequestMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}

func (h *VerificationHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email, middleware.RequestMeta(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: resetRequestedMessage})
}

func (h *VerificationHandler) CheckReset(w http.ResponseWriter, r *http.Request) {
	var req resetCheckRequest
	if err := decode(w, r, &req); err != nil {
		httpError(w, err)
		return
	}
	_, ok, err := h.svc.ValidatePasswordResetToken(r.Context(), req.Email, req.Token)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetTokenEnvelope{Valid: ok})
}

func (h *VerificationHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	var req resetCompleteRequest
	if err := decode(w, r, &req); err != nil {
		httpError(w, err)
		return
	}
	err := h.auth.CompletePasswordReset(r.Context(), req.Email, req.Token, req.NewPassword, middleware.RequestMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}
