// Package audit is the append-only record of every player, fine and preset mutation.
//
// Record runs inside the caller's transaction. A failed write is returned, never
// swallowed, so the caller's whole unit of work rolls back with it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
)

// Trail appends and reads audit rows.
type Trail struct {
	repo repository.AuditRepository
	now  func() time.Time
}

// NewTrail creates an audit trail over the given repository.
func NewTrail(repo repository.AuditRepository, now func() time.Time) *Trail {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Trail{repo: repo, now: now}
}

// Record validates and appends one audit row. db should be the caller's transaction.
func (t *Trail) Record(ctx context.Context, db repository.DBTX, draft domain.AuditDraft) (uuid.UUID, error) {
	if err := draft.Validate(); err != nil {
		return uuid.Nil, err
	}

	changes := draft.Changes
	if changes == nil {
		changes = domain.Changes{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal audit changes: %w", err)
	}

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = t.now()
	}

	log := &domain.AuditLog{
		ID:             uuid.New(),
		OrganizationID: draft.OrganizationID,
		EntityType:     draft.EntityType,
		EntityID:       draft.EntityID,
		Action:         draft.Action,
		ActorUserID:    draft.ActorUserID,
		Changes:        payload,
		CreatedAt:      createdAt,
	}
	if err := t.repo.Insert(ctx, db, log); err != nil {
		return uuid.Nil, fmt.Errorf("record audit %s %s: %w", draft.EntityType, draft.Action, err)
	}
	return log.ID, nil
}

// ListFor returns an entity's audit rows in the order they were written.
// Rows from other organizations are never returned.
func (t *Trail) ListFor(ctx context.Context, db repository.DBTX, orgID string, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditLog, error) {
	if orgID == "" {
		return nil, domain.ErrValidation("organization id is required")
	}
	if !entityType.Valid() {
		return nil, domain.ErrValidation("unknown entity type: " + string(entityType))
	}
	logs, err := t.repo.ListForEntity(ctx, db, orgID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit for %s %s: %w", entityType, entityID, err)
	}
	return logs, nil
}
