package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/infra"
)

const playerColumns = `id, organization_id, linked_user_id, name, email, active, balance, created_at, updated_at`

type playerRepo struct{}

// NewPlayerRepository returns a pgx-backed PlayerRepository.
func NewPlayerRepository() PlayerRepository {
	return &playerRepo{}
}

func (r *playerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error) {
	row := db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *playerRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error) {
	row := tx.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id)
	return scanPlayer(row)
}

func (r *playerRepo) ListByOrganization(ctx context.Context, db DBTX, orgID string, activeOnly bool) ([]domain.Player, error) {
	rows, err := db.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE organization_id = $1 AND ($2 = false OR active)
		ORDER BY name ASC, id ASC`, orgID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (r *playerRepo) Create(ctx context.Context, db DBTX, player *domain.Player) error {
	_, err := db.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		player.ID,
		player.OrganizationID,
		player.LinkedUserID,
		player.Name,
		player.Email,
		player.Active,
		infra.Int64ToNumeric(player.Balance),
		player.CreatedAt,
		player.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r *playerRepo) UpdateProfile(ctx context.Context, db DBTX, player *domain.Player) error {
	tag, err := db.Exec(ctx, `
		UPDATE players
		SET name = $2, email = $3, active = $4, linked_user_id = $5, updated_at = $6
		WHERE id = $1`,
		player.ID, player.Name, player.Email, player.Active, player.LinkedUserID, player.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update player %s: no row", player.ID)
	}
	return nil
}

// ApplyBalanceDelta uses server-side arithmetic so the write never depends on a stale read.
func (r *playerRepo) ApplyBalanceDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, at time.Time) (*domain.Player, error) {
	row := tx.QueryRow(ctx, `
		UPDATE players SET balance = balance + $2, updated_at = $3
		WHERE id = $1
		RETURNING `+playerColumns,
		id, infra.Int64ToNumeric(delta), at)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("apply balance delta: player %s vanished", id)
	}
	return p, nil
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	var balNum pgtype.Numeric
	err := row.Scan(&p.ID, &p.OrganizationID, &p.LinkedUserID, &p.Name, &p.Email, &p.Active, &balNum, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}

	p.Balance, err = infra.NumericToInt64(balNum)
	if err != nil {
		return nil, fmt.Errorf("convert balance: %w", err)
	}
	return &p, nil
}
