package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository/memory"
)

func newTrail() (*Trail, *memory.Store) {
	store := memory.NewStore()
	_, _, _, audits, _ := store.Repositories()
	now := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return NewTrail(audits, now), store
}

func TestRecord(t *testing.T) {
	trail, store := newTrail()
	ctx := context.Background()
	entityID := uuid.New()

	changes := domain.Changes{}
	changes.Set("name", "Alice", "Alicia")

	id, err := trail.Record(ctx, store, domain.AuditDraft{
		OrganizationID: "org_1",
		EntityType:     domain.EntityPlayer,
		EntityID:       entityID,
		Action:         domain.ActionUpdated,
		ActorUserID:    "coach1",
		Changes:        changes,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	logs, err := trail.ListFor(ctx, store, "org_1", domain.EntityPlayer, entityID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), logs[0].CreatedAt)

	var decoded map[string]domain.FieldChange
	require.NoError(t, json.Unmarshal(logs[0].Changes, &decoded))
	assert.Equal(t, "Alice", decoded["name"].Old)
	assert.Equal(t, "Alicia", decoded["name"].New)
}

func TestRecord_NilChangesStoredAsEmptyObject(t *testing.T) {
	trail, store := newTrail()
	entityID := uuid.New()

	_, err := trail.Record(context.Background(), store, domain.AuditDraft{
		OrganizationID: "org_1", EntityType: domain.EntityPreset, EntityID: entityID,
		Action: domain.ActionCreated, ActorUserID: "coach1",
	})
	require.NoError(t, err)

	logs, err := trail.ListFor(context.Background(), store, "org_1", domain.EntityPreset, entityID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{}`, string(logs[0].Changes))
}

func TestRecord_Invalid(t *testing.T) {
	valid := domain.AuditDraft{
		OrganizationID: "org_1", EntityType: domain.EntityFine, EntityID: uuid.New(),
		Action: domain.ActionPaid, ActorUserID: "coach1",
	}

	tests := []struct {
		name   string
		mutate func(d *domain.AuditDraft)
	}{
		{"missing organization", func(d *domain.AuditDraft) { d.OrganizationID = "" }},
		{"unknown entity type", func(d *domain.AuditDraft) { d.EntityType = "team" }},
		{"unknown action", func(d *domain.AuditDraft) { d.Action = "archived" }},
		{"nil entity id", func(d *domain.AuditDraft) { d.EntityID = uuid.Nil }},
		{"missing actor", func(d *domain.AuditDraft) { d.ActorUserID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trail, store := newTrail()
			d := valid
			tt.mutate(&d)

			_, err := trail.Record(context.Background(), store, d)
			require.Error(t, err)
			assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
			assert.Equal(t, 0, store.AuditCount())
		})
	}
}

func TestRecord_InsertFailureIsReturned(t *testing.T) {
	trail, store := newTrail()
	boom := errors.New("disk full")
	store.FailOn("audit.Insert", boom)

	_, err := trail.Record(context.Background(), store, domain.AuditDraft{
		OrganizationID: "org_1", EntityType: domain.EntityFine, EntityID: uuid.New(),
		Action: domain.ActionCreated, ActorUserID: "coach1",
	})
	assert.ErrorIs(t, err, boom)
}

func TestListFor_OrderAndTenantIsolation(t *testing.T) {
	trail, store := newTrail()
	ctx := context.Background()
	entityID := uuid.New()

	for _, action := range []domain.AuditAction{domain.ActionCreated, domain.ActionUpdated, domain.ActionPaid} {
		_, err := trail.Record(ctx, store, domain.AuditDraft{
			OrganizationID: "org_1", EntityType: domain.EntityFine, EntityID: entityID,
			Action: action, ActorUserID: "coach1",
		})
		require.NoError(t, err)
	}

	logs, err := trail.ListFor(ctx, store, "org_1", domain.EntityFine, entityID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, domain.ActionCreated, logs[0].Action)
	assert.Equal(t, domain.ActionUpdated, logs[1].Action)
	assert.Equal(t, domain.ActionPaid, logs[2].Action)

	foreign, err := trail.ListFor(ctx, store, "org_2", domain.EntityFine, entityID)
	require.NoError(t, err)
	assert.Empty(t, foreign)

	_, err = trail.ListFor(ctx, store, "org_1", "team", entityID)
	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
}
