package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/service"
)

// AuditHandler serves /v1/audit.
type AuditHandler struct {
	svc *service.AuditService
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List handles GET /v1/audit/{entityType}/{entityId}.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	entityType, err := domain.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		RespondError(w, err)
		return
	}
	entityID, err := uuidParam(r, "entityId")
	if err != nil {
		RespondError(w, err)
		return
	}

	logs, err := h.svc.ListFor(r.Context(), actor, entityType, entityID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"entries": logs})
}
