package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/service"
)

// FineHandler serves /v1/fines.
type FineHandler struct {
	svc *service.FineService
}

// NewFineHandler creates a FineHandler.
func NewFineHandler(svc *service.FineService) *FineHandler {
	return &FineHandler{svc: svc}
}

type fineResponse struct {
	domain.Fine
	AmountDisplay string `json:"amount_display"`
}

func toFineResponse(f *domain.Fine) fineResponse {
	return fineResponse{Fine: *f, AmountDisplay: domain.FormatAmount(f.Amount)}
}

// issueFineRequest issues either an ad hoc fine (amount or amount_major, plus reason)
// or a fine copied from preset_id.
type issueFineRequest struct {
	PlayerID    uuid.UUID  `json:"player_id"`
	Amount      *int64     `json:"amount"`
	AmountMajor string     `json:"amount_major"`
	Reason      string     `json:"reason"`
	PresetID    *uuid.UUID `json:"preset_id"`
}

// Issue handles POST /v1/fines.
func (h *FineHandler) Issue(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req issueFineRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	var fine *domain.Fine
	if req.PresetID != nil {
		if req.Amount != nil || req.AmountMajor != "" || req.Reason != "" {
			RespondError(w, domain.ErrValidation("preset_id cannot be combined with amount or reason"))
			return
		}
		fine, err = h.svc.IssueFineFromPreset(r.Context(), actor, req.PlayerID, *req.PresetID)
	} else {
		var amount int64
		amount, err = resolveAmount(req.Amount, req.AmountMajor)
		if err == nil {
			fine, err = h.svc.IssueFine(r.Context(), actor, req.PlayerID, amount, req.Reason)
		}
	}
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toFineResponse(fine))
}

// List handles GET /v1/fines?player_id=&status=&limit=.
func (h *FineHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var filter domain.FineFilter
	q := r.URL.Query()
	if s := q.Get("player_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			RespondError(w, domain.ErrValidation("invalid player_id"))
			return
		}
		filter.PlayerID = &id
	}
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseFineStatus(s)
		if err != nil {
			RespondError(w, err)
			return
		}
		filter.Status = &status
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondError(w, domain.ErrValidation("invalid limit"))
			return
		}
		filter.Limit = n
	}

	fines, err := h.svc.ListFines(r.Context(), actor, filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	out := make([]fineResponse, 0, len(fines))
	for i := range fines {
		out = append(out, toFineResponse(&fines[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"fines": out})
}

// Get handles GET /v1/fines/{id}.
func (h *FineHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	fine, err := h.svc.GetFine(r.Context(), actor, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toFineResponse(fine))
}

// Pay handles POST /v1/fines/{id}/pay. A second payment returns 409.
func (h *FineHandler) Pay(w http.ResponseWriter, r *http.Request) {
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

	fine, err := h.svc.MarkPaid(r.Context(), actor, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toFineResponse(fine))
}
