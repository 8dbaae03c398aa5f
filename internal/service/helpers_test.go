package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/teamfines/platform/internal/audit"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/ledger"
	"github.com/teamfines/platform/internal/repository"
	"github.com/teamfines/platform/internal/repository/memory"
)

var (
	org1   = domain.Actor{UserID: "coach1", OrganizationID: "org_1", Role: "owner"}
	org2   = domain.Actor{UserID: "coach2", OrganizationID: "org_2", Role: "owner"}
	tClock = time.Date(2026, 4, 10, 19, 30, 0, 0, time.UTC)
)

// stepClock advances one second per reading so audit timestamps are strictly increasing.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type testEnv struct {
	store   *memory.Store
	metrics *Metrics
	fines   repository.FineRepository
	players *PlayerService
	ledger  *FineService
	presets *PresetService
	audit   *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	playerRepo, fineRepo, presetRepo, auditRepo, outboxRepo := store.Repositories()

	clock := &stepClock{t: tClock}
	now := clock.Now

	metrics := NewMetrics(prometheus.NewRegistry())
	deps := Deps{
		DB:      store,
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Metrics: metrics,
		Now:     now,
	}
	trail := audit.NewTrail(auditRepo, now)
	engine := ledger.NewEngine(playerRepo, fineRepo, presetRepo, outboxRepo, trail, now)

	return &testEnv{
		store:   store,
		metrics: metrics,
		fines:   fineRepo,
		players: NewPlayerService(deps, playerRepo, fineRepo, trail),
		ledger:  NewFineService(deps, engine, fineRepo, playerRepo),
		presets: NewPresetService(deps, presetRepo, trail),
		audit:   NewAuditService(deps, trail),
	}
}

func (e *testEnv) createPlayer(t *testing.T, actor domain.Actor, name string) *domain.Player {
	t.Helper()
	p, err := e.players.CreatePlayer(context.Background(), actor, name, nil)
	require.NoError(t, err)
	return p
}

func (e *testEnv) balance(t *testing.T, actor domain.Actor, playerID uuid.UUID) int64 {
	t.Helper()
	b, err := e.players.GetBalance(context.Background(), actor, playerID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) auditRows(t *testing.T, actor domain.Actor, entityType domain.EntityType, id uuid.UUID) []domain.AuditLog {
	t.Helper()
	logs, err := e.audit.ListFor(context.Background(), actor, entityType, id)
	require.NoError(t, err)
	return logs
}

func (e *testEnv) assertInvariant(t *testing.T, actor domain.Actor, playerID uuid.UUID) {
	t.Helper()
	check, err := e.players.VerifyBalance(context.Background(), actor, playerID)
	require.NoError(t, err)
	require.Zero(t, check.Drift(), "stored=%d pending=%d", check.StoredBalance, check.PendingTotal)
}
