package api

import (
	"net/http"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/api/middleware"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// AuthHandler serves login, session, and account recovery endpoints.
type AuthHandler struct {
	service *auth.AuthService
}

func NewAuthHandler(service *auth.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	IsActive      bool   `json:"is_active"`
	EmailVerified bool   `json:"email_verified"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, userResponse{
		ID:            user.ID.String(),
		Email:         user.Email.String(),
		FullName:      user.FullName,
		IsActive:      user.IsActive,
		EmailVerified: user.EmailVerified,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	pair, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: helpers.GetRealIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recoveryRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset always answers 202. The reset token travels out of
// band; whether the email exists is never revealed here.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if _, err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if _, err := h.service.RequestEmailVerification(r.Context(), req.Email); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a verification link has been sent",
	})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me reflects the authenticated principal back from the verified credential.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	tc, err := tenant.Require(r.Context())
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	method, _ := middleware.MethodFrom(r.Context())

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id":         tc.UserID,
		"organization_id": tc.TenantID,
		"roles":           tc.Roles,
		"auth_method":     method,
	})
}
