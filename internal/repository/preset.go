package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/infra"
)

const presetColumns = `id, organization_id, name, amount, description, active, created_at`

type presetRepo struct{}

// NewPresetRepository returns a pgx-backed PresetRepository.
func NewPresetRepository() PresetRepository {
	return &presetRepo{}
}

func (r *presetRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.FinePreset, error) {
	row := db.QueryRow(ctx, `SELECT `+presetColumns+` FROM fine_presets WHERE id = $1`, id)
	return scanPreset(row)
}

func (r *presetRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.FinePreset, error) {
	row := tx.QueryRow(ctx, `SELECT `+presetColumns+` FROM fine_presets WHERE id = $1 FOR UPDATE`, id)
	return scanPreset(row)
}

func (r *presetRepo) Create(ctx context.Context, db DBTX, preset *domain.FinePreset) error {
	_, err := db.Exec(ctx, `
		INSERT INTO fine_presets (`+presetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		preset.ID,
		preset.OrganizationID,
		preset.Name,
		infra.Int64ToNumeric(preset.Amount),
		preset.Description,
		preset.Active,
		preset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert preset: %w", err)
	}
	return nil
}

func (r *presetRepo) Update(ctx context.Context, db DBTX, preset *domain.FinePreset) error {
	tag, err := db.Exec(ctx, `
		UPDATE fine_presets SET name = $2, amount = $3, description = $4, active = $5
		WHERE id = $1`,
		preset.ID, preset.Name, infra.Int64ToNumeric(preset.Amount), preset.Description, preset.Active)
	if err != nil {
		return fmt.Errorf("update preset: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update preset %s: no row", preset.ID)
	}
	return nil
}

func (r *presetRepo) ListByOrganization(ctx context.Context, db DBTX, orgID string, activeOnly bool) ([]domain.FinePreset, error) {
	rows, err := db.Query(ctx, `
		SELECT `+presetColumns+`
		FROM fine_presets
		WHERE organization_id = $1 AND ($2 = false OR active)
		ORDER BY name ASC, id ASC`, orgID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query presets: %w", err)
	}
	defer rows.Close()

	var presets []domain.FinePreset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, *p)
	}
	return presets, rows.Err()
}

func scanPreset(row pgx.Row) (*domain.FinePreset, error) {
	var p domain.FinePreset
	var amountNum pgtype.Numeric
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &amountNum, &p.Description, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan preset: %w", err)
	}
	p.Amount, err = infra.NumericToInt64(amountNum)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	return &p, nil
}
