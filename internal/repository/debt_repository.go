package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// DebtRepository manages the accrual ledger. Accrual rows are written
// by the accept transition (inside the issue transaction, see
// IssueRepository.ApplyTransition); this repository only reads them and
// applies them to tenant balances.
type DebtRepository interface {
	GetByIssue(ctx context.Context, issueID string) (*domain.DebtAccrual, error)
	ListUnapplied(ctx context.Context, limit int) ([]domain.DebtAccrual, error)
	// Apply marks the issue's accrual applied and increments the tenant
	// balance in one transaction. It reports false when there was
	// nothing to apply (no accrual, or already applied), which makes
	// retries idempotent.
	Apply(ctx context.Context, issueID string) (bool, error)
}

type debtRepository struct {
	pool *pgxpool.Pool
}

// NewDebtRepository returns a Postgres-backed implementation.
func NewDebtRepository(pool *pgxpool.Pool) DebtRepository {
	return &debtRepository{pool: pool}
}

const accrualColumns = `id, issue_id, tenant_id, amount, applied, created_at, applied_at`

func (r *debtRepository) GetByIssue(ctx context.Context, issueID string) (*domain.DebtAccrual, error) {
	const query = `SELECT ` + accrualColumns + ` FROM debt_accruals WHERE issue_id=$1`
	return scanAccrual(r.pool.QueryRow(ctx, query, issueID))
}

func (r *debtRepository) ListUnapplied(ctx context.Context, limit int) ([]domain.DebtAccrual, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + accrualColumns + ` FROM debt_accruals WHERE NOT applied ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DebtAccrual
	for rows.Next() {
		accrual, err := scanAccrual(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *accrual)
	}
	return result, rows.Err()
}

func (r *debtRepository) Apply(ctx context.Context, issueID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const claim = `
        UPDATE debt_accruals SET applied=TRUE, applied_at=NOW()
        WHERE issue_id=$1 AND NOT applied
        RETURNING tenant_id, amount`
	var tenantID string
	var amount float64
	if err := tx.QueryRow(ctx, claim, issueID).Scan(&tenantID, &amount); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	const increment = `UPDATE users SET debt_balance=debt_balance+$1, updated_at=NOW() WHERE id=$2`
	cmd, err := tx.Exec(ctx, increment, amount, tenantID)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, pgx.ErrNoRows
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func scanAccrual(row pgx.Row) (*domain.DebtAccrual, error) {
	var accrual domain.DebtAccrual
	if err := row.Scan(
		&accrual.ID,
		&accrual.IssueID,
		&accrual.TenantID,
		&accrual.Amount,
		&accrual.Applied,
		&accrual.CreatedAt,
		&accrual.AppliedAt,
	); err != nil {
		return nil, err
	}
	return &accrual, nil
}
