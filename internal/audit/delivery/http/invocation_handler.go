package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aras-services/pam-policy-bridge/internal/audit/service"
)

// InvocationHandler is the read-only HTTP surface over the audit
// companion's invocation history. There is no write path: records only
// ever arrive via internal/audit/ingest.
type InvocationHandler struct {
	svc *service.InvocationService
}

func NewInvocationHandler(svc *service.InvocationService) *InvocationHandler {
	return &InvocationHandler{svc: svc}
}

func (h *InvocationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/invocations", func(r chi.Router) {
		r.Get("/", h.ListInvocations)
		r.Get("/{id}", h.GetInvocation)
	})
}

func (h *InvocationHandler) ListInvocations(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 50
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	hookFilter := r.URL.Query().Get("hook")

	resp, err := h.svc.ListInvocations(page, limit, hookFilter)
	if err != nil {
		WriteInternalError(w, err)
		return
	}
	WriteSuccess(w, resp, "")
}

func (h *InvocationHandler) GetInvocation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteValidationError(w, "invalid invocation id")
		return
	}

	rec, err := h.svc.GetInvocation(id)
	if err != nil {
		WriteNotFound(w, "invocation not found")
		return
	}
	WriteSuccess(w, rec, "")
}
