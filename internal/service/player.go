package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/audit"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// PlayerService manages team members. It never writes balance.
type PlayerService struct {
	deps    Deps
	players repository.PlayerRepository
	fines   repository.FineRepository
	trail   *audit.Trail
}

// NewPlayerService creates a PlayerService.
func NewPlayerService(deps Deps, players repository.PlayerRepository, fines repository.FineRepository, trail *audit.Trail) *PlayerService {
	return &PlayerService{deps: deps.withDefaults(), players: players, fines: fines, trail: trail}
}

// CreatePlayer adds an active player with a zero balance.
func (s *PlayerService) CreatePlayer(ctx context.Context, actor domain.Actor, name string, email *string) (player *domain.Player, err error) {
	ctx, finish := startSpan(ctx, s.deps, "PlayerService.CreatePlayer", orgAttr(actor))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(name); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if email != nil && *email == "" {
		email = nil
	}
	if email != nil {
		if err := domain.ValidateEmail(*email); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
	}

	now := s.deps.Now()
	p := &domain.Player{
		ID:             uuid.New(),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Email:          email,
		Active:         true,
		Balance:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	changes := domain.Changes{}
	changes.Set("name", nil, p.Name)
	changes.Set("email", nil, p.Email)
	changes.Set("active", nil, p.Active)
	changes.Set("balance", nil, p.Balance)
	changes.Set("linked_user_id", nil, p.LinkedUserID)

	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		if err := s.players.Create(ctx, tx, p); err != nil {
			return err
		}
		_, err := s.trail.Record(ctx, tx, domain.AuditDraft{
			OrganizationID: actor.OrganizationID,
			EntityType:     domain.EntityPlayer,
			EntityID:       p.ID,
			Action:         domain.ActionCreated,
			ActorUserID:    actor.UserID,
			Changes:        changes,
			CreatedAt:      now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncMutation(string(domain.EntityPlayer), string(domain.ActionCreated))
	s.deps.Logger.Info("player created", "organization_id", actor.OrganizationID, "player_id", p.ID)
	return p, nil
}

// RenamePlayer changes a player's display name.
func (s *PlayerService) RenamePlayer(ctx context.Context, actor domain.Actor, playerID uuid.UUID, name string) (*domain.Player, error) {
	return s.UpdatePlayer(ctx, actor, playerID, domain.PlayerPatch{Name: &name})
}

// SetActive activates or deactivates a player. Fines and balance are untouched.
func (s *PlayerService) SetActive(ctx context.Context, actor domain.Actor, playerID uuid.UUID, active bool) (*domain.Player, error) {
	return s.UpdatePlayer(ctx, actor, playerID, domain.PlayerPatch{Active: &active})
}

// LinkUser attaches an identity-provider user to the player profile.
func (s *PlayerService) LinkUser(ctx context.Context, actor domain.Actor, playerID uuid.UUID, userID string) (*domain.Player, error) {
	return s.UpdatePlayer(ctx, actor, playerID, domain.PlayerPatch{LinkedUserID: &userID})
}

// UpdatePlayer applies patch and records the changed fields. A patch that
// changes nothing returns the current player and writes no audit row.
// Any attempt to set balance is a ValidationError.
func (s *PlayerService) UpdatePlayer(ctx context.Context, actor domain.Actor, playerID uuid.UUID, patch domain.PlayerPatch) (player *domain.Player, err error) {
	ctx, finish := startSpan(ctx, s.deps, "PlayerService.UpdatePlayer", orgAttr(actor), attribute.String("player_id", playerID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var changed domain.Changes
	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		current, err := s.lockPlayer(ctx, tx, actor, playerID)
		if err != nil {
			return err
		}

		next, changes := patch.Apply(*current)
		player = &next
		if changes.Empty() {
			return nil
		}
		changed = changes

		now := s.deps.Now()
		next.UpdatedAt = now
		if err := s.players.UpdateProfile(ctx, tx, &next); err != nil {
			return err
		}
		_, err = s.trail.Record(ctx, tx, domain.AuditDraft{
			OrganizationID: actor.OrganizationID,
			EntityType:     domain.EntityPlayer,
			EntityID:       playerID,
			Action:         domain.ActionUpdated,
			ActorUserID:    actor.UserID,
			Changes:        changes,
			CreatedAt:      now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !changed.Empty() {
		s.deps.Metrics.IncMutation(string(domain.EntityPlayer), string(domain.ActionUpdated))
		s.deps.Logger.Info("player updated", "organization_id", actor.OrganizationID, "player_id", playerID, "fields", len(changed))
	}
	return player, nil
}

// GetPlayer returns one player of the actor's organization.
func (s *PlayerService) GetPlayer(ctx context.Context, actor domain.Actor, playerID uuid.UUID) (*domain.Player, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return loadPlayer(ctx, s.players, s.deps.DB, actor, playerID)
}

// ListPlayers returns the organization's players ordered by name.
func (s *PlayerService) ListPlayers(ctx context.Context, actor domain.Actor, activeOnly bool) ([]domain.Player, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	players, err := s.players.ListByOrganization(ctx, s.deps.DB, actor.OrganizationID, activeOnly)
	if err != nil {
		return nil, asDomainError(err)
	}
	if players == nil {
		players = []domain.Player{}
	}
	return players, nil
}

// GetBalance returns the player's outstanding total in minor units.
func (s *PlayerService) GetBalance(ctx context.Context, actor domain.Actor, playerID uuid.UUID) (int64, error) {
	p, err := s.GetPlayer(ctx, actor, playerID)
	if err != nil {
		return 0, err
	}
	return p.Balance, nil
}

// VerifyBalance recomputes the pending total and compares it with the stored balance.
// The player row is locked first, so no ledger write on this player can commit
// between the two reads.
func (s *PlayerService) VerifyBalance(ctx context.Context, actor domain.Actor, playerID uuid.UUID) (check domain.BalanceCheck, err error) {
	ctx, finish := startSpan(ctx, s.deps, "PlayerService.VerifyBalance", orgAttr(actor), attribute.String("player_id", playerID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return domain.BalanceCheck{}, err
	}

	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		p, err := s.lockPlayer(ctx, tx, actor, playerID)
		if err != nil {
			return err
		}
		pending, err := s.fines.SumPending(ctx, tx, playerID)
		if err != nil {
			return err
		}
		check = domain.BalanceCheck{PlayerID: playerID, StoredBalance: p.Balance, PendingTotal: pending}
		return nil
	})
	if err != nil {
		return domain.BalanceCheck{}, err
	}

	drifted := check.Drift() != 0
	s.deps.Metrics.IncBalanceCheck(drifted)
	if drifted {
		s.deps.Logger.Warn("balance drift detected",
			"organization_id", actor.OrganizationID,
			"player_id", playerID,
			"stored", check.StoredBalance,
			"pending_total", check.PendingTotal,
		)
	}
	return check, nil
}

// lockPlayer takes the player's row lock, queueing behind ledger writes on it.
func (s *PlayerService) lockPlayer(ctx context.Context, tx pgx.Tx, actor domain.Actor, id uuid.UUID) (*domain.Player, error) {
	p, err := s.players.LockForUpdate(ctx, tx, id)
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
