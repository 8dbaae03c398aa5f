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

// PresetService manages the fine preset catalog. Presets never affect
// fines that were already issued from them.
type PresetService struct {
	deps    Deps
	presets repository.PresetRepository
	trail   *audit.Trail
}

// NewPresetService creates a PresetService.
func NewPresetService(deps Deps, presets repository.PresetRepository, trail *audit.Trail) *PresetService {
	return &PresetService{deps: deps.withDefaults(), presets: presets, trail: trail}
}

// Create adds an active preset.
func (s *PresetService) Create(ctx context.Context, actor domain.Actor, name string, amount int64, description *string) (preset *domain.FinePreset, err error) {
	ctx, finish := startSpan(ctx, s.deps, "PresetService.Create", orgAttr(actor))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(name); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if description != nil && *description == "" {
		description = nil
	}

	p := &domain.FinePreset{
		ID:             uuid.New(),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Amount:         amount,
		Description:    description,
		Active:         true,
		CreatedAt:      s.deps.Now(),
	}

	changes := domain.Changes{}
	changes.Set("name", nil, p.Name)
	changes.Set("amount", nil, p.Amount)
	changes.Set("description", nil, p.Description)
	changes.Set("active", nil, p.Active)

	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		if err := s.presets.Create(ctx, tx, p); err != nil {
			return err
		}
		return s.record(ctx, tx, actor, p.ID, domain.ActionCreated, changes)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncMutation(string(domain.EntityPreset), string(domain.ActionCreated))
	s.deps.Logger.Info("preset created", "organization_id", actor.OrganizationID, "preset_id", p.ID)
	return p, nil
}

// Update applies patch. A patch that changes nothing writes no audit row.
func (s *PresetService) Update(ctx context.Context, actor domain.Actor, presetID uuid.UUID, patch domain.PresetPatch) (preset *domain.FinePreset, err error) {
	ctx, finish := startSpan(ctx, s.deps, "PresetService.Update", orgAttr(actor), attribute.String("preset_id", presetID.String()))
	defer func() { finish(err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var changed domain.Changes
	err = inTx(ctx, s.deps.DB, func(tx pgx.Tx) error {
		current, err := s.presets.LockForUpdate(ctx, tx, presetID)
		if err != nil {
			return asDomainError(err)
		}
		if err := checkPreset(current, actor, presetID); err != nil {
			return err
		}

		next, changes := patch.Apply(*current)
		preset = &next
		if changes.Empty() {
			return nil
		}
		changed = changes

		if err := s.presets.Update(ctx, tx, &next); err != nil {
			return err
		}
		return s.record(ctx, tx, actor, presetID, domain.ActionUpdated, changes)
	})
	if err != nil {
		return nil, err
	}

	if !changed.Empty() {
		s.deps.Metrics.IncMutation(string(domain.EntityPreset), string(domain.ActionUpdated))
		s.deps.Logger.Info("preset updated", "organization_id", actor.OrganizationID, "preset_id", presetID)
	}
	return preset, nil
}

// Deactivate hides a preset from issuance. Existing fines keep their amount and status.
func (s *PresetService) Deactivate(ctx context.Context, actor domain.Actor, presetID uuid.UUID) (*domain.FinePreset, error) {
	inactive := false
	return s.Update(ctx, actor, presetID, domain.PresetPatch{Active: &inactive})
}

// Get returns one preset of the actor's organization.
func (s *PresetService) Get(ctx context.Context, actor domain.Actor, presetID uuid.UUID) (*domain.FinePreset, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.load(ctx, s.deps.DB, actor, presetID)
}

// List returns the organization's presets ordered by name.
func (s *PresetService) List(ctx context.Context, actor domain.Actor, activeOnly bool) ([]domain.FinePreset, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	presets, err := s.presets.ListByOrganization(ctx, s.deps.DB, actor.OrganizationID, activeOnly)
	if err != nil {
		return nil, asDomainError(err)
	}
	if presets == nil {
		presets = []domain.FinePreset{}
	}
	return presets, nil
}

func (s *PresetService) load(ctx context.Context, db repository.DBTX, actor domain.Actor, id uuid.UUID) (*domain.FinePreset, error) {
	p, err := s.presets.FindByID(ctx, db, id)
	if err != nil {
		return nil, asDomainError(err)
	}
	if err := checkPreset(p, actor, id); err != nil {
		return nil, err
	}
	return p, nil
}

func checkPreset(p *domain.FinePreset, actor domain.Actor, id uuid.UUID) error {
	if p == nil {
		return domain.ErrNotFound("preset", id.String())
	}
	if p.OrganizationID != actor.OrganizationID {
		return domain.ErrCrossTenant("preset", id.String())
	}
	return nil
}

func (s *PresetService) record(ctx context.Context, db repository.DBTX, actor domain.Actor, id uuid.UUID, action domain.AuditAction, changes domain.Changes) error {
	_, err := s.trail.Record(ctx, db, domain.AuditDraft{
		OrganizationID: actor.OrganizationID,
		EntityType:     domain.EntityPreset,
		EntityID:       id,
		Action:         action,
		ActorUserID:    actor.UserID,
		Changes:        changes,
		CreatedAt:      s.deps.Now(),
	})
	return err
}
