package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/domain"
)

// ExecuteMarkPaid settles a pending fine and lowers the player's balance by its amount.
// Paying an already-paid fine is rejected with InvalidTransition and changes nothing.
// Pattern: Find → Lock player → Lock fine → Transition → conditional update → PostFineTransition
func (e *Engine) ExecuteMarkPaid(ctx context.Context, tx pgx.Tx, params domain.MarkPaidParams) (*domain.FineResult, error) {
	if err := validateOrg(params.OrganizationID, params.ActorUserID); err != nil {
		return nil, err
	}

	fine, err := e.fines.FindByID(ctx, tx, params.FineID)
	if err != nil {
		return nil, fmt.Errorf("mark paid find: %w", err)
	}
	if fine == nil {
		return nil, domain.ErrNotFound("fine", params.FineID.String())
	}
	if fine.OrganizationID != params.OrganizationID {
		return nil, domain.ErrCrossTenant("fine", params.FineID.String())
	}
	if fine.Status != domain.FinePending {
		return nil, domain.ErrInvalidTransition("fine", fine.ID.String(), fine.Status, domain.FinePaid)
	}

	// Lock order: player, then fine.
	if _, err := e.LockPlayerForUpdate(ctx, tx, params.OrganizationID, fine.PlayerID); err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	locked, err := e.fines.LockForUpdate(ctx, tx, params.FineID)
	if err != nil {
		return nil, fmt.Errorf("mark paid lock fine: %w", err)
	}
	if locked == nil {
		return nil, domain.ErrNotFound("fine", params.FineID.String())
	}

	// Re-decide on the locked row; a concurrent payer may have won the race.
	t, err := domain.TransitionFine(*locked, domain.FinePaid, e.now())
	if err != nil {
		return nil, err
	}

	paid := t.Fine
	ok, err := e.fines.MarkPaid(ctx, tx, &paid)
	if err != nil {
		return nil, fmt.Errorf("mark paid update: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidTransition("fine", paid.ID.String(), locked.Status, domain.FinePaid)
	}

	player, event, err := e.PostFineTransition(ctx, tx, t, params.ActorUserID)
	if err != nil {
		return nil, fmt.Errorf("mark paid post: %w", err)
	}

	return &domain.FineResult{Fine: &paid, Player: player, Events: []domain.OutboxDraft{event}}, nil
}
