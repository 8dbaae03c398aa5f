package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType is the closed set of audited entities.
type EntityType string

const (
	EntityPlayer EntityType = "player"
	EntityFine   EntityType = "fine"
	EntityPreset EntityType = "preset"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityPlayer, EntityFine, EntityPreset:
		return true
	}
	return false
}

// ParseEntityType converts user input to an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", ErrValidation("unknown entity type: " + s)
	}
	return t, nil
}

// AuditAction is the closed set of audited mutations.
type AuditAction string

const (
	ActionCreated AuditAction = "created"
	ActionUpdated AuditAction = "updated"
	ActionDeleted AuditAction = "deleted"
	ActionPaid    AuditAction = "paid"
)

func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionPaid:
		return true
	}
	return false
}

// FieldChange is one before/after pair. Old is nil for newly created fields.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Changes maps field name to its before/after values. Call sites build it explicitly.
type Changes map[string]FieldChange

// Set records a field change.
func (c Changes) Set(field string, old, new any) {
	c[field] = FieldChange{Old: old, New: new}
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool { return len(c) == 0 }

// AuditDraft is what callers hand to the audit trail.
type AuditDraft struct {
	OrganizationID string
	EntityType     EntityType
	EntityID       uuid.UUID
	Action         AuditAction
	ActorUserID    string
	Changes        Changes
	CreatedAt      time.Time
}

// Validate checks the closed sets and required fields.
func (d AuditDraft) Validate() error {
	if d.OrganizationID == "" {
		return ErrValidation("audit organization id is required")
	}
	if !d.EntityType.Valid() {
		return ErrValidation("unknown audit entity type: " + string(d.EntityType))
	}
	if !d.Action.Valid() {
		return ErrValidation("unknown audit action: " + string(d.Action))
	}
	if d.EntityID == uuid.Nil {
		return ErrValidation("audit entity id is required")
	}
	if d.ActorUserID == "" {
		return ErrValidation("audit actor user id is required")
	}
	return nil
}

// AuditLog represents an audit_logs row. Rows are never updated or deleted.
type AuditLog struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID string          `json:"organization_id"`
	EntityType     EntityType      `json:"entity_type"`
	EntityID       uuid.UUID       `json:"entity_id"`
	Action         AuditAction     `json:"action"`
	ActorUserID    string          `json:"actor_user_id"`
	Changes        json.RawMessage `json:"changes"`
	CreatedAt      time.Time       `json:"created_at"`
}
