package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/domain"
)

type auditRepo struct{}

// NewAuditRepository returns a pgx-backed AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepo{}
}

func (r *auditRepo) Insert(ctx context.Context, db DBTX, log *domain.AuditLog) error {
	_, err := db.Exec(ctx, `
		INSERT INTO audit_logs
		  (id, organization_id, entity_type, entity_id, action, actor_user_id, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.ID,
		log.OrganizationID,
		string(log.EntityType),
		log.EntityID,
		string(log.Action),
		log.ActorUserID,
		log.Changes,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListForEntity orders by seq, the insertion sequence, so rows written in the
// same instant keep their write order.
func (r *auditRepo) ListForEntity(ctx context.Context, db DBTX, orgID string, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditLog, error) {
	rows, err := db.Query(ctx, `
		SELECT id, organization_id, entity_type, entity_id, action, actor_user_id, changes, created_at
		FROM audit_logs
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY seq ASC`, orgID, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.EntityType, &l.EntityID,
			&l.Action, &l.ActorUserID, &l.Changes, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
