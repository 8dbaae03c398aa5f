package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
)

const (
	defaultFineLimit = 100
	maxFineLimit     = 500
)

// Repositories returns the full repository set backed by s.
func (s *Store) Repositories() (repository.PlayerRepository, repository.FineRepository, repository.PresetRepository, repository.AuditRepository, repository.OutboxRepository) {
	return &PlayerRepo{s}, &FineRepo{s}, &PresetRepo{s}, &AuditRepo{s}, &OutboxRepo{s}
}

// --- players ---

type PlayerRepo struct{ s *Store }

func (r *PlayerRepo) FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*domain.Player, error) {
	if err := r.s.failure("players.FindByID"); err != nil {
		return nil, err
	}
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	p, ok := st.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PlayerRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error) {
	if err := r.s.failure("players.LockForUpdate"); err != nil {
		return nil, err
	}
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, tx, id)
}

func (r *PlayerRepo) ListByOrganization(ctx context.Context, db repository.DBTX, orgID string, activeOnly bool) ([]domain.Player, error) {
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []domain.Player
	for _, p := range st.players {
		if p.OrganizationID != orgID || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (r *PlayerRepo) Create(ctx context.Context, db repository.DBTX, player *domain.Player) error {
	if err := r.s.failure("players.Create"); err != nil {
		return err
	}
	return r.s.write(ctx, db, func(st *state) error {
		st.players[player.ID] = *player
		return nil
	})
}

func (r *PlayerRepo) UpdateProfile(ctx context.Context, db repository.DBTX, player *domain.Player) error {
	if err := r.s.failure("players.UpdateProfile"); err != nil {
		return err
	}
	return r.s.write(ctx, db, func(st *state) error {
		cur, ok := st.players[player.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		cur.Name = player.Name
		cur.Email = player.Email
		cur.Active = player.Active
		cur.LinkedUserID = player.LinkedUserID
		cur.UpdatedAt = player.UpdatedAt
		st.players[player.ID] = cur
		return nil
	})
}

func (r *PlayerRepo) ApplyBalanceDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, at time.Time) (*domain.Player, error) {
	if err := r.s.failure("players.ApplyBalanceDelta"); err != nil {
		return nil, err
	}
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	p, ok := t.state.players[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	p.Balance += delta
	p.UpdatedAt = at
	t.state.players[id] = p
	return &p, nil
}

// --- fines ---

type FineRepo struct{ s *Store }

func (r *FineRepo) FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*domain.Fine, error) {
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	f, ok := st.fines[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (r *FineRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Fine, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, tx, id)
}

func (r *FineRepo) Insert(ctx context.Context, tx pgx.Tx, fine *domain.Fine) error {
	if err := r.s.failure("fines.Insert"); err != nil {
		return err
	}
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.state.players[fine.PlayerID]; !ok {
		return pgx.ErrNoRows
	}
	t.state.fines[fine.ID] = *fine
	return nil
}

func (r *FineRepo) MarkPaid(ctx context.Context, tx pgx.Tx, fine *domain.Fine) (bool, error) {
	if err := r.s.failure("fines.MarkPaid"); err != nil {
		return false, err
	}
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}
	cur, ok := t.state.fines[fine.ID]
	if !ok || cur.Status != domain.FinePending {
		return false, nil
	}
	cur.Status = domain.FinePaid
	cur.PaidAt = fine.PaidAt
	cur.UpdatedAt = fine.UpdatedAt
	t.state.fines[fine.ID] = cur
	return true, nil
}

func (r *FineRepo) List(ctx context.Context, db repository.DBTX, orgID string, filter domain.FineFilter) ([]domain.Fine, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxFineLimit {
		limit = defaultFineLimit
	}
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []domain.Fine
	for _, f := range st.fines {
		if f.OrganizationID != orgID {
			continue
		}
		if filter.PlayerID != nil && f.PlayerID != *filter.PlayerID {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FineRepo) SumPending(ctx context.Context, db repository.DBTX, playerID uuid.UUID) (int64, error) {
	st, done, err := r.s.view(db)
	if err != nil {
		return 0, err
	}
	defer done()
	var sum int64
	for _, f := range st.fines {
		if f.PlayerID == playerID && f.Status == domain.FinePending {
			sum += f.Amount
		}
	}
	return sum, nil
}

// --- presets ---

type PresetRepo struct{ s *Store }

func (r *PresetRepo) FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*domain.FinePreset, error) {
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	p, ok := st.presets[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PresetRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.FinePreset, error) {
	if err := r.s.failure("presets.LockForUpdate"); err != nil {
		return nil, err
	}
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, tx, id)
}

func (r *PresetRepo) Create(ctx context.Context, db repository.DBTX, preset *domain.FinePreset) error {
	if err := r.s.failure("presets.Create"); err != nil {
		return err
	}
	return r.s.write(ctx, db, func(st *state) error {
		st.presets[preset.ID] = *preset
		return nil
	})
}

func (r *PresetRepo) Update(ctx context.Context, db repository.DBTX, preset *domain.FinePreset) error {
	if err := r.s.failure("presets.Update"); err != nil {
		return err
	}
	return r.s.write(ctx, db, func(st *state) error {
		if _, ok := st.presets[preset.ID]; !ok {
			return pgx.ErrNoRows
		}
		st.presets[preset.ID] = *preset
		return nil
	})
}

func (r *PresetRepo) ListByOrganization(ctx context.Context, db repository.DBTX, orgID string, activeOnly bool) ([]domain.FinePreset, error) {
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []domain.FinePreset
	for _, p := range st.presets {
		if p.OrganizationID != orgID || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

// --- audit ---

type AuditRepo struct{ s *Store }

func (r *AuditRepo) Insert(ctx context.Context, db repository.DBTX, log *domain.AuditLog) error {
	if err := r.s.failure("audit.Insert"); err != nil {
		return err
	}
	return r.s.write(ctx, db, func(st *state) error {
		st.audit = append(st.audit, *log)
		return nil
	})
}

func (r *AuditRepo) ListForEntity(ctx context.Context, db repository.DBTX, orgID string, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditLog, error) {
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []domain.AuditLog
	for _, l := range st.audit {
		if l.OrganizationID == orgID && l.EntityType == entityType && l.EntityID == entityID {
			out = append(out, l)
		}
	}
	return out, nil
}

// --- outbox ---

type OutboxRepo struct{ s *Store }

func (r *OutboxRepo) Insert(ctx context.Context, db repository.DBTX, draft domain.OutboxDraft) error {
	if err := r.s.failure("outbox.Insert"); err != nil {
		return err
	}
	return r.s.write(ctx, db, func(st *state) error {
		st.seq++
		st.outbox = append(st.outbox, outboxEntry{row: domain.OutboxRow{SeqID: st.seq, OutboxDraft: draft}})
		return nil
	})
}

func (r *OutboxRepo) FetchUnpublished(ctx context.Context, db repository.DBTX, limit int) ([]domain.OutboxRow, error) {
	if err := r.s.failure("outbox.FetchUnpublished"); err != nil {
		return nil, err
	}
	st, done, err := r.s.view(db)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []domain.OutboxRow
	for _, e := range st.outbox {
		if e.published {
			continue
		}
		out = append(out, e.row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, db repository.DBTX, ids []int64) error {
	if err := r.s.failure("outbox.MarkPublished"); err != nil {
		return err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.s.write(ctx, db, func(st *state) error {
		for i := range st.outbox {
			if want[st.outbox[i].row.SeqID] {
				st.outbox[i].published = true
			}
		}
		return nil
	})
}

// PublishedCount returns the number of committed outbox rows marked published.
func (s *Store) PublishedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.committed.outbox {
		if e.published {
			n++
		}
	}
	return n
}
