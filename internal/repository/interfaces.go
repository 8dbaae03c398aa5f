package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/teamfines/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxBeginner is a DBTX that can open transactions (pgxpool.Pool in production).
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Lookups by ID are not tenant-filtered: callers compare OrganizationID
// themselves so they can tell NotFound from CrossTenant.

// PlayerRepository provides access to players.
type PlayerRepository interface {
	// FindByID returns a player by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the player.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error)

	// ListByOrganization returns an organization's players ordered by name.
	ListByOrganization(ctx context.Context, db DBTX, orgID string, activeOnly bool) ([]domain.Player, error)

	Create(ctx context.Context, db DBTX, player *domain.Player) error

	// UpdateProfile writes name, email, active and linked user. Balance is never written here.
	UpdateProfile(ctx context.Context, db DBTX, player *domain.Player) error

	// ApplyBalanceDelta adds delta to balance with server-side arithmetic, stamps
	// updated_at with at and returns the row.
	// Only the ledger calls this, with the player row already locked.
	ApplyBalanceDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, at time.Time) (*domain.Player, error)
}

// FineRepository provides access to fines.
type FineRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Fine, error)

	// LockForUpdate locks the fine row. Callers lock the owning player first.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Fine, error)

	Insert(ctx context.Context, tx pgx.Tx, fine *domain.Fine) error

	// MarkPaid flips a pending fine to paid. Returns false if the row was not pending.
	MarkPaid(ctx context.Context, tx pgx.Tx, fine *domain.Fine) (bool, error)

	// List returns an organization's fines ordered by issued_at DESC, id DESC.
	List(ctx context.Context, db DBTX, orgID string, filter domain.FineFilter) ([]domain.Fine, error)

	// SumPending returns the total amount of a player's pending fines.
	SumPending(ctx context.Context, db DBTX, playerID uuid.UUID) (int64, error)
}

// PresetRepository provides access to fine_presets.
type PresetRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.FinePreset, error)

	// LockForUpdate locks the preset row so concurrent patches apply one after another.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.FinePreset, error)

	Create(ctx context.Context, db DBTX, preset *domain.FinePreset) error
	Update(ctx context.Context, db DBTX, preset *domain.FinePreset) error
	ListByOrganization(ctx context.Context, db DBTX, orgID string, activeOnly bool) ([]domain.FinePreset, error)
}

// AuditRepository provides append and read access to audit_logs.
// There is deliberately no update or delete.
type AuditRepository interface {
	Insert(ctx context.Context, db DBTX, log *domain.AuditLog) error

	// ListForEntity returns an entity's rows in insertion order.
	ListForEntity(ctx context.Context, db DBTX, orgID string, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditLog, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event within the same transaction as the ledger change.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events in sequence order.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	// MarkPublished stamps published_at on the given rows.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
