package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/service"
)

// PresetHandler serves /v1/presets.
type PresetHandler struct {
	svc *service.PresetService
}

// NewPresetHandler creates a PresetHandler.
func NewPresetHandler(svc *service.PresetService) *PresetHandler {
	return &PresetHandler{svc: svc}
}

type presetResponse struct {
	domain.FinePreset
	AmountDisplay string `json:"amount_display"`
}

func toPresetResponse(p *domain.FinePreset) presetResponse {
	return presetResponse{FinePreset: *p, AmountDisplay: domain.FormatAmount(p.Amount)}
}

type createPresetRequest struct {
	Name        string  `json:"name"`
	Amount      *int64  `json:"amount"`
	AmountMajor string  `json:"amount_major"`
	Description *string `json:"description"`
}

// Create handles POST /v1/presets.
func (h *PresetHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req createPresetRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	amount, err := resolveAmount(req.Amount, req.AmountMajor)
	if err != nil {
		RespondError(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), actor, req.Name, amount, req.Description)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toPresetResponse(p))
}

// List handles GET /v1/presets?active=true.
func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	activeOnly, err := boolQuery(r, "active")
	if err != nil {
		RespondError(w, err)
		return
	}

	presets, err := h.svc.List(r.Context(), actor, activeOnly)
	if err != nil {
		RespondError(w, err)
		return
	}
	out := make([]presetResponse, 0, len(presets))
	for i := range presets {
		out = append(out, toPresetResponse(&presets[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"presets": out})
}

// Get handles GET /v1/presets/{id}.
func (h *PresetHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withPreset(w, r, func(actor domain.Actor, id uuid.UUID) (*domain.FinePreset, error) {
		return h.svc.Get(r.Context(), actor, id)
	})
}

// Update handles PATCH /v1/presets/{id}.
func (h *PresetHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.withPreset(w, r, func(actor domain.Actor, id uuid.UUID) (*domain.FinePreset, error) {
		var patch domain.PresetPatch
		if err := DecodeJSON(r, &patch); err != nil {
			return nil, err
		}
		return h.svc.Update(r.Context(), actor, id, patch)
	})
}

// Deactivate handles POST /v1/presets/{id}/deactivate.
func (h *PresetHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.withPreset(w, r, func(actor domain.Actor, id uuid.UUID) (*domain.FinePreset, error) {
		return h.svc.Deactivate(r.Context(), actor, id)
	})
}

func (h *PresetHandler) withPreset(w http.ResponseWriter, r *http.Request, fn func(domain.Actor, uuid.UUID) (*domain.FinePreset, error)) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	p, err := fn(actor, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toPresetResponse(p))
}
