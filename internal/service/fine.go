package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/ledger"
	"github.com/teamfines/platform/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// FineService issues and settles fines. Each mutation is one transaction.
type FineService struct {
	deps    Deps
	engine  *ledger.Engine
	fines   repository.FineRepository
	players repository.PlayerRepository
}

// NewFineService creates a FineService.
func NewFineService(deps Deps, engine *ledger.Engine, fines repository.FineRepository, players repository.PlayerRepository) *FineService {
	return &FineService{deps: deps.withDefaults(), engine: engine, fines: fines, players: players}
}

// IssueFine creates a pending fine and raises the player's balance by amount.
func (s *FineService) IssueFine(ctx context.Context, actor domain.Actor, playerID uuid.UUID, amount int64, reason string) (fine *domain.Fine, err error) {
	ctx, finish := startSpan(ctx, s.deps, "FineService.IssueFine", orgAttr(actor), attribute.String("player_id", playerID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var result *domain.FineResult
	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		var err error
		result, err = s.engine.ExecuteIssueFine(ctx, tx, domain.IssueFineParams{
			OrganizationID: actor.OrganizationID,
			PlayerID:       playerID,
			Amount:         amount,
			Reason:         reason,
			IssuedByUserID: actor.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterIssue(actor, result)
	return result.Fine, nil
}

// IssueFineFromPreset issues a fine whose amount and reason are copied from an active preset.
func (s *FineService) IssueFineFromPreset(ctx context.Context, actor domain.Actor, playerID, presetID uuid.UUID) (fine *domain.Fine, err error) {
	ctx, finish := startSpan(ctx, s.deps, "FineService.IssueFineFromPreset", orgAttr(actor),
		attribute.String("player_id", playerID.String()), attribute.String("preset_id", presetID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var result *domain.FineResult
	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		var err error
		result, err = s.engine.ExecuteIssueFromPreset(ctx, tx, domain.IssueFromPresetParams{
			OrganizationID: actor.OrganizationID,
			PlayerID:       playerID,
			PresetID:       presetID,
			IssuedByUserID: actor.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterIssue(actor, result)
	return result.Fine, nil
}

func (s *FineService) afterIssue(actor domain.Actor, result *domain.FineResult) {
	s.deps.Metrics.ObserveIssued(result.Fine.Amount)
	s.deps.Metrics.IncMutation(string(domain.EntityFine), string(domain.ActionCreated))
	s.deps.Logger.Info("fine issued",
		"organization_id", actor.OrganizationID,
		"player_id", result.Fine.PlayerID,
		"fine_id", result.Fine.ID,
		"amount", result.Fine.Amount,
		"balance_after", result.Player.Balance,
	)
}

// MarkPaid settles a pending fine. Paying a paid fine fails with InvalidTransition.
func (s *FineService) MarkPaid(ctx context.Context, actor domain.Actor, fineID uuid.UUID) (fine *domain.Fine, err error) {
	ctx, finish := startSpan(ctx, s.deps, "FineService.MarkPaid", orgAttr(actor), attribute.String("fine_id", fineID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var result *domain.FineResult
	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		var err error
		result, err = s.engine.ExecuteMarkPaid(ctx, tx, domain.MarkPaidParams{
			OrganizationID: actor.OrganizationID,
			FineID:         fineID,
			ActorUserID:    actor.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.ObservePaid(result.Fine.Amount)
	s.deps.Metrics.IncMutation(string(domain.EntityFine), string(domain.ActionPaid))
	s.deps.Logger.Info("fine paid",
		"organization_id", actor.OrganizationID,
		"player_id", result.Fine.PlayerID,
		"fine_id", result.Fine.ID,
		"balance_after", result.Player.Balance,
	)
	return result.Fine, nil
}

// ListFines returns the organization's fines, newest first.
// A player filter naming another organization's player is a CrossTenant error.
func (s *FineService) ListFines(ctx context.Context, actor domain.Actor, filter domain.FineFilter) (fines []domain.Fine, err error) {
	ctx, finish := startSpan(ctx, s.deps, "FineService.ListFines", orgAttr(actor))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, domain.ErrValidation("unknown fine status: " + string(*filter.Status))
	}
	if filter.PlayerID != nil {
		if _, err := loadPlayer(ctx, s.players, s.deps.DB, actor, *filter.PlayerID); err != nil {
			return nil, err
		}
	}

	fines, err = s.fines.List(ctx, s.deps.DB, actor.OrganizationID, filter)
	if err != nil {
		return nil, asDomainError(err)
	}
	if fines == nil {
		fines = []domain.Fine{}
	}
	return fines, nil
}

// GetFine returns one fine of the actor's organization.
func (s *FineService) GetFine(ctx context.Context, actor domain.Actor, fineID uuid.UUID) (fine *domain.Fine, err error) {
	ctx, finish := startSpan(ctx, s.deps, "FineService.GetFine", orgAttr(actor), attribute.String("fine_id", fineID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	fine, err = s.fines.FindByID(ctx, s.deps.DB, fineID)
	if err != nil {
		return nil, asDomainError(err)
	}
	if fine == nil {
		return nil, domain.ErrNotFound("fine", fineID.String())
	}
	if fine.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrCrossTenant("fine", fineID.String())
	}
	return fine, nil
}

// loadPlayer reads a player and applies the tenant check.
func loadPlayer(ctx context.Context, players repository.PlayerRepository, db repository.DBTX, actor domain.Actor, id uuid.UUID) (*domain.Player, error) {
	p, err := players.FindByID(ctx, db, id)
	if err != nil {
		return nil, asDomainError(err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("player", id.String())
	}
	if p.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrCrossTenant("player", id.String())
	}
	return p, nil
}
