package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamfines/platform/internal/domain"
	"golang.org/x/sync/errgroup"
)

func TestScenarioIssueThenPay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	require.Equal(t, int64(0), alice.Balance)

	// Scenario A
	fine, err := env.ledger.IssueFine(ctx, org1, alice.ID, 1500, "late to practice")
	require.NoError(t, err)
	assert.Equal(t, domain.FinePending, fine.Status)
	assert.Equal(t, "coach1", fine.IssuedByUserID)
	assert.Nil(t, fine.PaidAt)
	assert.Equal(t, int64(1500), env.balance(t, org1, alice.ID))

	rows := env.auditRows(t, org1, domain.EntityFine, fine.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActionCreated, rows[0].Action)

	// Scenario B
	paid, err := env.ledger.MarkPaid(ctx, org1, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinePaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, int64(0), env.balance(t, org1, alice.ID))

	rows = env.auditRows(t, org1, domain.EntityFine, fine.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.ActionCreated, rows[0].Action)
	assert.Equal(t, domain.ActionPaid, rows[1].Action)
	assert.True(t, rows[0].CreatedAt.Before(rows[1].CreatedAt))
	assert.JSONEq(t, `{"old":"pending","new":"paid"}`, mustField(t, rows[1], "status"))

	env.assertInvariant(t, org1, alice.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.FinesIssued))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.FinesPaid))
}

func TestMarkPaid_SecondCallRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	keep, err := env.ledger.IssueFine(ctx, org1, alice.ID, 700, "no kit")
	require.NoError(t, err)
	fine, err := env.ledger.IssueFine(ctx, org1, alice.ID, 1500, "late to practice")
	require.NoError(t, err)

	_, err = env.ledger.MarkPaid(ctx, org1, fine.ID)
	require.NoError(t, err)
	balanceBefore := env.balance(t, org1, alice.ID)
	auditBefore := env.store.AuditCount()

	_, err = env.ledger.MarkPaid(ctx, org1, fine.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidTransition, domain.ErrorCode(err))
	assert.Equal(t, balanceBefore, env.balance(t, org1, alice.ID))
	assert.Equal(t, int64(700), balanceBefore)
	assert.Equal(t, auditBefore, env.store.AuditCount())

	got, err := env.ledger.GetFine(ctx, org1, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinePending, got.Status)
}

func TestIssueFine_Validation(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		reason string
	}{
		{"zero amount", 0, "late"},
		{"negative amount", -100, "late"},
		{"empty reason", 100, ""},
		{"amount over maximum", domain.MaxAmount + 1, "late"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			alice := env.createPlayer(t, org1, "alice")
			auditBefore := env.store.AuditCount()

			_, err := env.ledger.IssueFine(context.Background(), org1, alice.ID, tt.amount, tt.reason)
			require.Error(t, err)
			assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))

			fines, err := env.ledger.ListFines(context.Background(), org1, domain.FineFilter{})
			require.NoError(t, err)
			assert.Empty(t, fines)
			assert.Equal(t, int64(0), env.balance(t, org1, alice.ID))
			assert.Equal(t, auditBefore, env.store.AuditCount())
			assert.Equal(t, 0, env.store.OutboxCount())
		})
	}
}

func TestFines_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	fine, err := env.ledger.IssueFine(ctx, org1, alice.ID, 1500, "late to practice")
	require.NoError(t, err)
	auditBefore := env.store.AuditCount()

	t.Run("issue to foreign player", func(t *testing.T) {
		_, err := env.ledger.IssueFine(ctx, org2, alice.ID, 100, "x")
		assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
	})
	t.Run("pay foreign fine", func(t *testing.T) {
		_, err := env.ledger.MarkPaid(ctx, org2, fine.ID)
		assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
	})
	t.Run("get foreign fine", func(t *testing.T) {
		_, err := env.ledger.GetFine(ctx, org2, fine.ID)
		assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
	})
	t.Run("list with foreign player filter", func(t *testing.T) {
		_, err := env.ledger.ListFines(ctx, org2, domain.FineFilter{PlayerID: &alice.ID})
		assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
	})
	t.Run("list shows nothing of other org", func(t *testing.T) {
		fines, err := env.ledger.ListFines(ctx, org2, domain.FineFilter{})
		require.NoError(t, err)
		assert.Empty(t, fines)
	})
	t.Run("balance of foreign player", func(t *testing.T) {
		_, err := env.players.GetBalance(ctx, org2, alice.ID)
		assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
	})

	got, err := env.ledger.GetFine(ctx, org1, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinePending, got.Status)
	assert.Equal(t, int64(1500), env.balance(t, org1, alice.ID))
	assert.Equal(t, auditBefore, env.store.AuditCount())
}

func TestFines_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.IssueFine(ctx, org1, uuid.New(), 100, "late")
	assert.Equal(t, domain.CodeNotFound, domain.ErrorCode(err))

	_, err = env.ledger.MarkPaid(ctx, org1, uuid.New())
	assert.Equal(t, domain.CodeNotFound, domain.ErrorCode(err))

	_, err = env.ledger.GetFine(ctx, org1, uuid.New())
	assert.Equal(t, domain.CodeNotFound, domain.ErrorCode(err))
}

func TestIssueFine_AuditFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	auditBefore := env.store.AuditCount()

	boom := errors.New("audit_logs unavailable")
	env.store.FailOn("audit.Insert", boom)
	_, err := env.ledger.IssueFine(ctx, org1, alice.ID, 1500, "late to practice")
	env.store.FailOn("audit.Insert", nil)

	require.Error(t, err)
	assert.Equal(t, domain.CodePersistence, domain.ErrorCode(err))
	assert.ErrorIs(t, err, boom)

	fines, err := env.ledger.ListFines(ctx, org1, domain.FineFilter{})
	require.NoError(t, err)
	assert.Empty(t, fines)
	assert.Equal(t, int64(0), env.balance(t, org1, alice.ID))
	assert.Equal(t, auditBefore, env.store.AuditCount())
	assert.Equal(t, 0, env.store.OutboxCount())
}

func TestMarkPaid_OutboxFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	fine, err := env.ledger.IssueFine(ctx, org1, alice.ID, 1500, "late to practice")
	require.NoError(t, err)

	env.store.FailOn("outbox.Insert", errors.New("outbox full"))
	_, err = env.ledger.MarkPaid(ctx, org1, fine.ID)
	env.store.FailOn("outbox.Insert", nil)
	assert.Equal(t, domain.CodePersistence, domain.ErrorCode(err))

	got, err := env.ledger.GetFine(ctx, org1, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinePending, got.Status)
	assert.Nil(t, got.PaidAt)
	assert.Equal(t, int64(1500), env.balance(t, org1, alice.ID))
	assert.Len(t, env.auditRows(t, org1, domain.EntityFine, fine.ID), 1)

	// The fine is still payable after the failed attempt.
	_, err = env.ledger.MarkPaid(ctx, org1, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), env.balance(t, org1, alice.ID))
}

func TestListFines_FiltersAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	bob := env.createPlayer(t, org1, "bob")

	f1, err := env.ledger.IssueFine(ctx, org1, alice.ID, 100, "first")
	require.NoError(t, err)
	f2, err := env.ledger.IssueFine(ctx, org1, bob.ID, 200, "second")
	require.NoError(t, err)
	f3, err := env.ledger.IssueFine(ctx, org1, alice.ID, 300, "third")
	require.NoError(t, err)
	_, err = env.ledger.MarkPaid(ctx, org1, f3.ID)
	require.NoError(t, err)

	all, err := env.ledger.ListFines(ctx, org1, domain.FineFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{f3.ID, f2.ID, f1.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	pending := domain.FinePending
	aliceOnly, err := env.ledger.ListFines(ctx, org1, domain.FineFilter{PlayerID: &alice.ID, Status: &pending})
	require.NoError(t, err)
	require.Len(t, aliceOnly, 1)
	assert.Equal(t, f1.ID, aliceOnly[0].ID)

	limited, err := env.ledger.ListFines(ctx, org1, domain.FineFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	bad := domain.FineStatus("void")
	_, err = env.ledger.ListFines(ctx, org1, domain.FineFilter{Status: &bad})
	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
}

func TestLedger_ConcurrentIssueAndPay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")

	const workers = 16
	ids := make(chan uuid.UUID, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		amount := int64(100 * (i + 1))
		g.Go(func() error {
			f, err := env.ledger.IssueFine(ctx, org1, alice.ID, amount, "drill")
			if err != nil {
				return err
			}
			ids <- f.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(ids)

	// Every fine is paid by two racing callers; exactly one may win.
	var paidOK, rejected atomic.Int32
	var pay errgroup.Group
	for id := range ids {
		for j := 0; j < 2; j++ {
			pay.Go(func() error {
				_, err := env.ledger.MarkPaid(ctx, org1, id)
				switch domain.ErrorCode(err) {
				case "":
					paidOK.Add(1)
				case domain.CodeInvalidTransition:
					rejected.Add(1)
				default:
					return err
				}
				return nil
			})
		}
	}
	require.NoError(t, pay.Wait())

	assert.Equal(t, int32(workers), paidOK.Load())
	assert.Equal(t, int32(workers), rejected.Load())
	assert.Equal(t, int64(0), env.balance(t, org1, alice.ID))
	assert.Equal(t, 1+2*workers, env.store.AuditCount())
	env.assertInvariant(t, org1, alice.ID)
}

func TestLedger_InterleavedInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	players := []*domain.Player{env.createPlayer(t, org1, "alice"), env.createPlayer(t, org1, "bob")}

	var g errgroup.Group
	for i := 0; i < 24; i++ {
		p := players[i%2]
		payIt := i%3 == 0
		g.Go(func() error {
			f, err := env.ledger.IssueFine(ctx, org1, p.ID, 250, "drill")
			if err != nil {
				return err
			}
			if payIt {
				_, err = env.ledger.MarkPaid(ctx, org1, f.ID)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, p := range players {
		env.assertInvariant(t, org1, p.ID)
	}
	assert.Equal(t, int64(250*(12-4)), env.balance(t, org1, players[0].ID))
	assert.Equal(t, int64(250*(12-4)), env.balance(t, org1, players[1].ID))
}

func TestIssueFineFromPreset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createPlayer(t, org1, "alice")
	preset, err := env.presets.Create(ctx, org1, "Late to practice", 500, nil)
	require.NoError(t, err)

	fine, err := env.ledger.IssueFineFromPreset(ctx, org1, alice.ID, preset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), fine.Amount)
	assert.Equal(t, "Late to practice", fine.Reason)
	assert.Equal(t, int64(500), env.balance(t, org1, alice.ID))

	_, err = env.ledger.IssueFineFromPreset(ctx, org2, alice.ID, preset.ID)
	assert.Equal(t, domain.CodeCrossTenant, domain.ErrorCode(err))
}

func mustField(t *testing.T, log domain.AuditLog, field string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(log.Changes, &m))
	raw, err := json.Marshal(m[field])
	require.NoError(t, err)
	return string(raw)
}
