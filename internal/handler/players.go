package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/service"
)

// PlayerHandler serves /v1/players.
type PlayerHandler struct {
	svc *service.PlayerService
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(svc *service.PlayerService) *PlayerHandler {
	return &PlayerHandler{svc: svc}
}

type playerResponse struct {
	domain.Player
	BalanceDisplay string `json:"balance_display"`
}

func toPlayerResponse(p *domain.Player) playerResponse {
	return playerResponse{Player: *p, BalanceDisplay: domain.FormatAmount(p.Balance)}
}

type createPlayerRequest struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// Create handles POST /v1/players.
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req createPlayerRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	p, err := h.svc.CreatePlayer(r.Context(), actor, req.Name, req.Email)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toPlayerResponse(p))
}

// List handles GET /v1/players?active=true.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
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

	players, err := h.svc.ListPlayers(r.Context(), actor, activeOnly)
	if err != nil {
		RespondError(w, err)
		return
	}
	out := make([]playerResponse, 0, len(players))
	for i := range players {
		out = append(out, toPlayerResponse(&players[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"players": out})
}

// Get handles GET /v1/players/{id}.
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPlayer(r.Context(), actor, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toPlayerResponse(p))
}

// Update handles PATCH /v1/players/{id}. A body that sets balance is rejected.
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var patch domain.PlayerPatch
	if err := DecodeJSON(r, &patch); err != nil {
		RespondError(w, err)
		return
	}

	p, err := h.svc.UpdatePlayer(r.Context(), actor, id, patch)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toPlayerResponse(p))
}

type balanceResponse struct {
	PlayerID       uuid.UUID `json:"player_id"`
	Balance        int64     `json:"balance"`
	BalanceDisplay string    `json:"balance_display"`
	PendingTotal   *int64    `json:"pending_total,omitempty"`
	Drift          *int64    `json:"drift,omitempty"`
}

// Balance handles GET /v1/players/{id}/balance. With ?verify=true the pending
// total is recomputed and any drift reported.
func (h *PlayerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	verify, err := boolQuery(r, "verify")
	if err != nil {
		RespondError(w, err)
		return
	}

	if verify {
		check, err := h.svc.VerifyBalance(r.Context(), actor, id)
		if err != nil {
			RespondError(w, err)
			return
		}
		drift := check.Drift()
		RespondJSON(w, http.StatusOK, balanceResponse{
			PlayerID:       id,
			Balance:        check.StoredBalance,
			BalanceDisplay: domain.FormatAmount(check.StoredBalance),
			PendingTotal:   &check.PendingTotal,
			Drift:          &drift,
		})
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), actor, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, balanceResponse{
		PlayerID:       id,
		Balance:        balance,
		BalanceDisplay: domain.FormatAmount(balance),
	})
}

func (h *PlayerHandler) actorAndID(w http.ResponseWriter, r *http.Request) (domain.Actor, uuid.UUID, bool) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return domain.Actor{}, uuid.Nil, false
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		RespondError(w, err)
		return domain.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
