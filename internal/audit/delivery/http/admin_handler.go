package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aras-services/pam-policy-bridge/internal/audit/jwtauth"
)

// AdminHandler exchanges the operator's shared admin secret (hashed at
// rest, see config.JWTConfig.AdminSecretHash) for a bearer token the
// rest of the read API accepts.
type AdminHandler struct {
	tokens     *jwtauth.Service
	secretHash string
}

func NewAdminHandler(tokens *jwtauth.Service, secretHash string) *AdminHandler {
	return &AdminHandler{tokens: tokens, secretHash: secretHash}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/login", h.Login)
}

type loginRequest struct {
	Secret string `json:"secret"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteValidationError(w, "invalid request body")
		return
	}

	if err := jwtauth.VerifySecret(h.secretHash, req.Secret); err != nil {
		WriteUnauthorized(w, "invalid admin secret")
		return
	}

	token, err := h.tokens.IssueToken("admin")
	if err != nil {
		WriteInternalError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"token": token}, "")
}
