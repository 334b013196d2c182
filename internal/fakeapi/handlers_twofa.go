package fakeapi

import (
	"net/http"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/httpx"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// TwoFactorHandler serves the second-factor endpoints.
type TwoFactorHandler struct {
	Service *Service
}

type twoFactorRequest struct {
	UserID string                 `json:"userId"`
	Type   adminsdk.TwoFactorType `json:"type"`
	Code   string                 `json:"code"`
}

// subject resolves who the request acts for. With a token it is the token's
// subject; without one the body's userId must have a live login challenge.
func (h *TwoFactorHandler) subject(r *http.Request, bodyID string) (userID string, challenge bool, ok bool) {
	if id, authed := httpx.UserIDFromContext(r.Context()); authed {
		return id, h.Service.HasChallenge(id), true
	}
	if bodyID != "" && h.Service.HasChallenge(bodyID) {
		return bodyID, true, true
	}
	return "", false, false
}

// HandleSetup handles POST /auth/2fa/setup.
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req twoFactorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	userID, _, ok := h.subject(r, req.UserID)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized: missing bearer token")
		return
	}

	data, err := h.Service.Setup(userID, req.Type)
	if err != nil {
		log.Warn("2fa setup failed", "user_id", userID, "type", req.Type, "err", err)
		writeServiceError(w, err)
		return
	}

	if req.Type == adminsdk.TwoFactorEmail {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Verification code sent",
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]string{
			"secret":    data.Secret,
			"qrCodeUri": data.URI,
		},
	})
}

// HandleRegenerate handles POST /auth/2fa/regenerate.
func (h *TwoFactorHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())

	data, err := h.Service.Regenerate(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"secret":     data.Secret,
		"otpauthUrl": data.URI,
	})
}

// HandleVerify handles POST /auth/2fa/verify. On the challenge path the
// response carries the session tokens.
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req twoFactorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	userID, challenge, ok := h.subject(r, req.UserID)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized: missing bearer token")
		return
	}

	res, err := h.Service.Verify(userID, req.Type, req.Code, challenge)
	if err != nil {
		log.Warn("2fa verify failed", "user_id", userID, "type", req.Type, "err", err)
		writeServiceError(w, err)
		return
	}

	data := map[string]any{
		"verified": true,
		"user":     res.User,
	}
	if res.Tokens.AccessToken != "" {
		data["accessToken"] = res.Tokens.AccessToken
		data["refreshToken"] = res.Tokens.RefreshToken
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// HandleDisable handles DELETE /auth/2fa?userId=&type=.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())
	typ := adminsdk.TwoFactorType(r.URL.Query().Get("type"))

	if err := h.Service.Disable(userID, typ); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleRecoveryCodes handles GET /auth/2fa/recovery-codes.
func (h *TwoFactorHandler) HandleRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())

	codes, err := h.Service.RecoveryCodes(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if codes == nil {
		codes = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"recoveryCodes": codes},
	})
}
