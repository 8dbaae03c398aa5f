package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/domain"
)

// ExecuteIssueFine creates a pending fine and raises the player's balance by its amount.
// Pattern: Validate → Lock player → Insert fine → PostFineTransition
func (e *Engine) ExecuteIssueFine(ctx context.Context, tx pgx.Tx, params domain.IssueFineParams) (*domain.FineResult, error) {
	if err := validateOrg(params.OrganizationID, params.IssuedByUserID); err != nil {
		return nil, err
	}

	t, err := domain.NewFine(params.OrganizationID, params.PlayerID, params.Amount, params.Reason, params.IssuedByUserID, e.now())
	if err != nil {
		return nil, err
	}

	// Lock
	if _, err := e.LockPlayerForUpdate(ctx, tx, params.OrganizationID, params.PlayerID); err != nil {
		return nil, fmt.Errorf("issue fine: %w", err)
	}

	fine := t.Fine
	if err := e.fines.Insert(ctx, tx, &fine); err != nil {
		return nil, fmt.Errorf("issue fine insert: %w", err)
	}

	player, event, err := e.PostFineTransition(ctx, tx, t, params.IssuedByUserID)
	if err != nil {
		return nil, fmt.Errorf("issue fine post: %w", err)
	}

	return &domain.FineResult{Fine: &fine, Player: player, Events: []domain.OutboxDraft{event}}, nil
}

// ExecuteIssueFromPreset issues a fine that copies an active preset's amount and name.
// The new fine keeps no link to the preset.
func (e *Engine) ExecuteIssueFromPreset(ctx context.Context, tx pgx.Tx, params domain.IssueFromPresetParams) (*domain.FineResult, error) {
	if err := validateOrg(params.OrganizationID, params.IssuedByUserID); err != nil {
		return nil, err
	}

	preset, err := e.presets.FindByID(ctx, tx, params.PresetID)
	if err != nil {
		return nil, fmt.Errorf("issue from preset find: %w", err)
	}
	if preset == nil {
		return nil, domain.ErrNotFound("preset", params.PresetID.String())
	}
	if preset.OrganizationID != params.OrganizationID {
		return nil, domain.ErrCrossTenant("preset", params.PresetID.String())
	}
	if !preset.Active {
		return nil, domain.ErrValidation(fmt.Sprintf("preset %s is inactive", preset.ID))
	}

	return e.ExecuteIssueFine(ctx, tx, domain.IssueFineParams{
		OrganizationID: params.OrganizationID,
		PlayerID:       params.PlayerID,
		Amount:         preset.Amount,
		Reason:         preset.Name,
		IssuedByUserID: params.IssuedByUserID,
	})
}
