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

const fineColumns = `id, organization_id, player_id, amount, reason, status, issued_by_user_id,
	issued_at, paid_at, created_at, updated_at`

const defaultFineLimit = 100

type fineRepo struct{}

// NewFineRepository returns a pgx-backed FineRepository.
func NewFineRepository() FineRepository {
	return &fineRepo{}
}

func (r *fineRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Fine, error) {
	row := db.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = $1`, id)
	return scanFine(row)
}

func (r *fineRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Fine, error) {
	row := tx.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = $1 FOR UPDATE`, id)
	return scanFine(row)
}

func (r *fineRepo) Insert(ctx context.Context, tx pgx.Tx, fine *domain.Fine) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO fines (`+fineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		fine.ID,
		fine.OrganizationID,
		fine.PlayerID,
		infra.Int64ToNumeric(fine.Amount),
		fine.Reason,
		string(fine.Status),
		fine.IssuedByUserID,
		fine.IssuedAt,
		fine.PaidAt,
		fine.CreatedAt,
		fine.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}
	return nil
}

// MarkPaid is conditional on the row still being pending, so a concurrent payer
// that slipped past the lock sees zero rows instead of paying twice.
func (r *fineRepo) MarkPaid(ctx context.Context, tx pgx.Tx, fine *domain.Fine) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE fines SET status = 'paid', paid_at = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'`,
		fine.ID, fine.PaidAt, fine.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("mark fine paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *fineRepo) List(ctx context.Context, db DBTX, orgID string, filter domain.FineFilter) ([]domain.Fine, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = defaultFineLimit
	}

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := db.Query(ctx, `
		SELECT `+fineColumns+`
		FROM fines
		WHERE organization_id = $1
		  AND ($2::uuid IS NULL OR player_id = $2)
		  AND ($3::text IS NULL OR status::text = $3)
		ORDER BY issued_at DESC, id DESC
		LIMIT $4`, orgID, filter.PlayerID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query fines: %w", err)
	}
	defer rows.Close()

	var fines []domain.Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		fines = append(fines, *f)
	}
	return fines, rows.Err()
}

func (r *fineRepo) SumPending(ctx context.Context, db DBTX, playerID uuid.UUID) (int64, error) {
	var sum pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::numeric(15,0)
		FROM fines WHERE player_id = $1 AND status = 'pending'`, playerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum pending fines: %w", err)
	}
	return infra.NumericToInt64(sum)
}

func scanFine(row pgx.Row) (*domain.Fine, error) {
	var f domain.Fine
	var amountNum pgtype.Numeric
	err := row.Scan(
		&f.ID, &f.OrganizationID, &f.PlayerID, &amountNum, &f.Reason, &f.Status,
		&f.IssuedByUserID, &f.IssuedAt, &f.PaidAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan fine: %w", err)
	}

	f.Amount, err = infra.NumericToInt64(amountNum)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	return &f, nil
}
