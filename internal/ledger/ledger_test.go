package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamfines/platform/internal/audit"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository/memory"
)

var fixedNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type harness struct {
	store  *memory.Store
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	players, fines, presets, audits, outbox := store.Repositories()
	now := func() time.Time { return fixedNow }
	eng := NewEngine(players, fines, presets, outbox, audit.NewTrail(audits, now), now)
	return &harness{store: store, engine: eng}
}

func (h *harness) seedPlayer(t *testing.T, org string) uuid.UUID {
	t.Helper()
	players, _, _, _, _ := h.store.Repositories()
	p := &domain.Player{ID: uuid.New(), OrganizationID: org, Name: "Alice", Active: true, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	require.NoError(t, players.Create(context.Background(), h.store, p))
	return p.ID
}

func (h *harness) issue(t *testing.T, org string, playerID uuid.UUID, amount int64) (*domain.FineResult, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := h.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	res, err := h.engine.ExecuteIssueFine(ctx, tx, domain.IssueFineParams{
		OrganizationID: org,
		PlayerID:       playerID,
		Amount:         amount,
		Reason:         "late to practice",
		IssuedByUserID: "coach1",
	})
	if err != nil {
		return nil, err
	}
	require.NoError(t, tx.Commit(ctx))
	return res, nil
}

func (h *harness) pay(t *testing.T, org string, fineID uuid.UUID) (*domain.FineResult, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := h.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	res, err := h.engine.ExecuteMarkPaid(ctx, tx, domain.MarkPaidParams{OrganizationID: org, FineID: fineID, ActorUserID: "coach1"})
	if err != nil {
		return nil, err
	}
	require.NoError(t, tx.Commit(ctx))
	return res, nil
}

func TestExecuteIssueFine(t *testing.T) {
	h := newHarness(t)
	playerID := h.seedPlayer(t, "org_1")

	res, err := h.issue(t, "org_1", playerID, 1500)
	require.NoError(t, err)

	assert.Equal(t, domain.FinePending, res.Fine.Status)
	assert.Equal(t, int64(1500), res.Fine.Amount)
	assert.Equal(t, fixedNow, res.Fine.IssuedAt)
	assert.Nil(t, res.Fine.PaidAt)
	assert.Equal(t, int64(1500), res.Player.Balance)
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.EventFineIssued, res.Events[0].EventType)
	assert.Equal(t, playerID.String(), res.Events[0].PartitionKey)
	assert.Equal(t, 1, h.store.AuditCount())
	assert.Equal(t, 1, h.store.OutboxCount())
}

func TestExecuteIssueFine_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		org      string
		player   func(h *harness, t *testing.T) uuid.UUID
		amount   int64
		wantCode string
	}{
		{"zero amount", "org_1", func(h *harness, t *testing.T) uuid.UUID { return h.seedPlayer(t, "org_1") }, 0, domain.CodeValidation},
		{"negative amount", "org_1", func(h *harness, t *testing.T) uuid.UUID { return h.seedPlayer(t, "org_1") }, -5, domain.CodeValidation},
		{"missing org", "", func(h *harness, t *testing.T) uuid.UUID { return h.seedPlayer(t, "org_1") }, 100, domain.CodeValidation},
		{"unknown player", "org_1", func(*harness, *testing.T) uuid.UUID { return uuid.New() }, 100, domain.CodeNotFound},
		{"foreign player", "org_1", func(h *harness, t *testing.T) uuid.UUID { return h.seedPlayer(t, "org_2") }, 100, domain.CodeCrossTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			playerID := tt.player(h, t)

			_, err := h.issue(t, tt.org, playerID, tt.amount)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.Equal(t, 0, h.store.AuditCount())
			assert.Equal(t, 0, h.store.OutboxCount())
		})
	}
}

func TestExecuteMarkPaid(t *testing.T) {
	h := newHarness(t)
	playerID := h.seedPlayer(t, "org_1")
	issued, err := h.issue(t, "org_1", playerID, 1500)
	require.NoError(t, err)

	res, err := h.pay(t, "org_1", issued.Fine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinePaid, res.Fine.Status)
	require.NotNil(t, res.Fine.PaidAt)
	assert.Equal(t, fixedNow, *res.Fine.PaidAt)
	assert.Equal(t, int64(0), res.Player.Balance)
	assert.Equal(t, domain.EventFinePaid, res.Events[0].EventType)
	assert.Equal(t, 2, h.store.AuditCount())

	t.Run("second payment is rejected without side effects", func(t *testing.T) {
		_, err := h.pay(t, "org_1", issued.Fine.ID)
		require.Error(t, err)
		assert.Equal(t, domain.CodeInvalidTransition, domain.ErrorCode(err))
		assert.Equal(t, 2, h.store.AuditCount())
		assert.Equal(t, 2, h.store.OutboxCount())
	})

	t.Run("other organization cannot pay", func(t *testing.T) {
		other, err := h.issue(t, "org_1", playerID, 200)
		require.NoError(t, err)
		_, err = h.pay(t, "org_2", other.Fine.ID)
		assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
	})

	t.Run("unknown fine", func(t *testing.T) {
		_, err := h.pay(t, "org_1", uuid.New())
		assert.Equal(t, domain.CodeNotFound, domain.ErrorCode(err))
	})
}

func TestExecuteIssueFromPreset(t *testing.T) {
	h := newHarness(t)
	playerID := h.seedPlayer(t, "org_1")
	_, _, presets, _, _ := h.store.Repositories()

	active := &domain.FinePreset{ID: uuid.New(), OrganizationID: "org_1", Name: "Late", Amount: 500, Active: true, CreatedAt: fixedNow}
	inactive := &domain.FinePreset{ID: uuid.New(), OrganizationID: "org_1", Name: "Old", Amount: 900, Active: false, CreatedAt: fixedNow}
	foreign := &domain.FinePreset{ID: uuid.New(), OrganizationID: "org_2", Name: "Theirs", Amount: 100, Active: true, CreatedAt: fixedNow}
	for _, p := range []*domain.FinePreset{active, inactive, foreign} {
		require.NoError(t, presets.Create(context.Background(), h.store, p))
	}

	run := func(presetID uuid.UUID) (*domain.FineResult, error) {
		ctx := context.Background()
		tx, err := h.store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)
		res, err := h.engine.ExecuteIssueFromPreset(ctx, tx, domain.IssueFromPresetParams{
			OrganizationID: "org_1", PlayerID: playerID, PresetID: presetID, IssuedByUserID: "coach1",
		})
		if err != nil {
			return nil, err
		}
		require.NoError(t, tx.Commit(ctx))
		return res, nil
	}

	res, err := run(active.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Fine.Amount)
	assert.Equal(t, "Late", res.Fine.Reason)
	assert.Equal(t, int64(500), res.Player.Balance)

	_, err = run(inactive.ID)
	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))

	_, err = run(foreign.ID)
	assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))

	_, err = run(uuid.New())
	assert.Equal(t, domain.CodeNotFound, domain.ErrorCode(err))
}

func TestPostFineTransition_AuditFailureSurfaces(t *testing.T) {
	h := newHarness(t)
	playerID := h.seedPlayer(t, "org_1")
	boom := errors.New("audit table unavailable")
	h.store.FailOn("audit.Insert", boom)

	_, err := h.issue(t, "org_1", playerID, 1500)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	h.store.FailOn("audit.Insert", nil)
	players, fines, _, _, _ := h.store.Repositories()
	p, err := players.FindByID(context.Background(), h.store, playerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Balance)
	list, err := fines.List(context.Background(), h.store, "org_1", domain.FineFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, h.store.OutboxCount())
}

func TestPostFineTransition_StampsPlayerWithEngineClock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	players, _, _, _, _ := h.store.Repositories()
	p := &domain.Player{
		ID:             uuid.New(),
		OrganizationID: "org_1",
		Name:           "Alice",
		Active:         true,
		CreatedAt:      fixedNow.Add(-24 * time.Hour),
		UpdatedAt:      fixedNow.Add(-24 * time.Hour),
	}
	require.NoError(t, players.Create(ctx, h.store, p))

	res, err := h.issue(t, "org_1", p.ID, 1500)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, res.Player.UpdatedAt)
	assert.Equal(t, res.Fine.UpdatedAt, res.Player.UpdatedAt)

	stored, err := players.FindByID(ctx, h.store, p.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.UpdatedAt)
}
