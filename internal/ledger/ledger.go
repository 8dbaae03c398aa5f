package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/audit"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
)

// Engine provides the fine ledger's foundational operations:
//  1. LockPlayerForUpdate: row-level pessimistic lock, the per-player serialization point
//  2. PostFineTransition: balance delta + audit row + outbox event, all in the caller's tx
//
// Commands (issue, pay) are built from these and never touch balance any other way.
type Engine struct {
	players repository.PlayerRepository
	fines   repository.FineRepository
	presets repository.PresetRepository
	outbox  repository.OutboxRepository
	trail   *audit.Trail
	now     func() time.Time
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	players repository.PlayerRepository,
	fines repository.FineRepository,
	presets repository.PresetRepository,
	outbox repository.OutboxRepository,
	trail *audit.Trail,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		players: players,
		fines:   fines,
		presets: presets,
		outbox:  outbox,
		trail:   trail,
		now:     now,
	}
}

// LockPlayerForUpdate acquires a row-level lock and returns the player.
// Must be called within a transaction, before any fine row of that player is locked.
func (e *Engine) LockPlayerForUpdate(ctx context.Context, tx pgx.Tx, orgID string, playerID uuid.UUID) (*domain.Player, error) {
	player, err := e.players.LockForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, fmt.Errorf("lock player: %w", err)
	}
	if player == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	if player.OrganizationID != orgID {
		return nil, domain.ErrCrossTenant("player", playerID.String())
	}
	return player, nil
}

// PostFineTransition applies the side effects of a fine state change that has
// already been persisted on the fine row.
//
// Steps:
//  1. Apply the transition's balance delta with server-side arithmetic
//  2. Append the audit row
//  3. Insert the outbox event
//
// All 3 steps run within the caller's transaction; any error aborts it.
func (e *Engine) PostFineTransition(ctx context.Context, tx pgx.Tx, t domain.FineTransition, actorUserID string) (*domain.Player, domain.OutboxDraft, error) {
	updatedPlayer, err := e.players.ApplyBalanceDelta(ctx, tx, t.Fine.PlayerID, t.BalanceDelta, t.Fine.UpdatedAt)
	if err != nil {
		return nil, domain.OutboxDraft{}, fmt.Errorf("apply balance delta: %w", err)
	}

	_, err = e.trail.Record(ctx, tx, domain.AuditDraft{
		OrganizationID: t.Fine.OrganizationID,
		EntityType:     domain.EntityFine,
		EntityID:       t.Fine.ID,
		Action:         t.Action,
		ActorUserID:    actorUserID,
		Changes:        t.Changes,
		CreatedAt:      t.Fine.UpdatedAt,
	})
	if err != nil {
		return nil, domain.OutboxDraft{}, err
	}

	event := domain.NewFineEvent(t, updatedPlayer.Balance)
	if err := e.outbox.Insert(ctx, tx, event); err != nil {
		return nil, domain.OutboxDraft{}, fmt.Errorf("insert outbox event: %w", err)
	}

	return updatedPlayer, event, nil
}

func validateOrg(orgID, actorUserID string) error {
	return domain.Actor{OrganizationID: orgID, UserID: actorUserID}.Validate()
}
