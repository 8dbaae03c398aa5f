package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/audit"
	"github.com/teamfines/platform/internal/domain"
)

// AuditService exposes the audit trail for reads.
type AuditService struct {
	deps  Deps
	trail *audit.Trail
}

func NewAuditService(deps Deps, trail *audit.Trail) *AuditService {
	return &AuditService{deps: deps.withDefaults(), trail: trail}
}

// ListFor returns an entity's audit history, oldest first. Only rows of the
// actor's organization are visible, so a foreign entity yields an empty list.
func (s *AuditService) ListFor(ctx context.Context, actor domain.Actor, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditLog, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	logs, err := s.trail.ListFor(ctx, s.deps.DB, actor.OrganizationID, entityType, entityID)
	if err != nil {
		return nil, asDomainError(err)
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return logs, nil
}
