package fakeapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/httpx"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// AuthHandler serves login, registration, refresh and profile endpoints.
type AuthHandler struct {
	Service *Service
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// HandleLogin handles POST /auth/login. A user with an active second factor
// gets a challenge instead of tokens.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	identifier := firstNonEmpty(req.Identifier, req.Email, req.Username)
	if identifier == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Identifier and password are required")
		return
	}

	out, err := h.Service.Login(identifier, req.Password)
	if err != nil {
		log.Warn("login failed", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if out.Challenge {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Two-factor verification required",
			"data": map[string]any{
				"requires2FA": true,
				"user":        out.User,
			},
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"accessToken":  out.Tokens.AccessToken,
			"refreshToken": out.Tokens.RefreshToken,
			"mustSetup2fa": out.User.MustSetup2FA,
			"user":         out.User,
		},
	})
}

// HandleRegister handles POST /auth/register and signs the new user in.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req adminsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	u, pair, err := h.Service.Register(NewUser{
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		log.Warn("register failed", "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"token":         pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          u,
	})
}

// HandleRefresh handles POST /auth/refresh. Errors use the OAuth shape.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_request",
			"error_description": "refreshToken is required",
		})
		return
	}

	pair, err := h.Service.Refresh(req.RefreshToken)
	if err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_grant",
			"error_description": err.Error(),
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"data": map[string]string{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
		},
	})
}

// HandleMe handles GET /auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())

	u, err := h.Service.User(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

// HandleChangePassword handles POST /auth/change-password.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	userID, _ := httpx.UserIDFromContext(r.Context())

	var req adminsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.Service.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		log.Warn("change password failed", "user_id", userID, "err", err)
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated",
	})
}

// HandleUpdateProfile handles PATCH /auth/profile.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())

	var req adminsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	u, err := h.Service.UpdateProfile(userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"user": u},
	})
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var wait *WaitError
	switch {
	case errors.As(err, &wait):
		w.Header().Set("Retry-After", strconv.Itoa(wait.Seconds))
		httpx.WriteError(w, http.StatusTooManyRequests, wait.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrAlreadyEnabled):
		httpx.WriteError(w, http.StatusConflict, capitalize(err.Error()))
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrNotConfigured):
		httpx.WriteError(w, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, ErrNoChallenge), errors.Is(err, ErrInvalidRefresh):
		httpx.WriteError(w, http.StatusUnauthorized, capitalize(err.Error()))
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrWrongPassword), errors.Is(err, ErrMissingField),
		errors.Is(err, ErrInvalidCode), errors.Is(err, ErrUnsupportedMethod):
		httpx.WriteError(w, http.StatusBadRequest, capitalize(err.Error()))
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
