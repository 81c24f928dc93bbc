package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// ErrStatusPrecondition is returned by ApplyTransition when the issue
// exists but its current status fails the update's precondition. The
// check rides inside the UPDATE predicate, so two racing writers cannot
// both pass it.
var ErrStatusPrecondition = errors.New("issue status precondition failed")

// IssueFilter captures staff search parameters.
type IssueFilter struct {
	TenantID    *string
	AssigneeID  *string
	BuildingID  *string
	Statuses    []domain.IssueStatus
	Urgencies   []domain.IssueUrgency
	Limit       int
	Offset      int
}

// HistoryEntry describes the audit row a transition appends.
type HistoryEntry struct {
	Actor   string
	ActorID *string
	Action  domain.IssueAction
	Note    string
}

// TransitionUpdate describes one atomic "set fields + append history"
// store operation. Only non-nil Set fields are written; the optional
// status expectations become part of the UPDATE's WHERE clause; the
// optional accrual row is inserted in the same transaction.
type TransitionUpdate struct {
	SetStatus     *domain.IssueStatus
	SetCost       *float64
	SetAssigneeID *string
	SetETA        *time.Time
	SetETAAck     *bool

	ExpectStatus *domain.IssueStatus // current status must equal
	ForbidStatus *domain.IssueStatus // current status must differ

	History HistoryEntry
	Accrual *domain.DebtAccrual
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue, reported HistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	ApplyTransition(ctx context.Context, issueID string, update TransitionUpdate) (*domain.Issue, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates a Postgres-backed repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, external_key, tenant_id, apartment_id, title, description,
               urgency, status, assignee_id, cost, eta, eta_acknowledged, created_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue, reported HistoryEntry) error {
	const query = `
        INSERT INTO issues (external_key, tenant_id, apartment_id, title, description, urgency, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, query,
		issue.ExternalKey,
		issue.TenantID,
		issue.ApartmentID,
		issue.Title,
		issue.Description,
		issue.Urgency,
		issue.Status,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
		return err
	}

	const historyQuery = `
        INSERT INTO issue_history (issue_id, actor, actor_id, action, note)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	var entry domain.IssueHistory
	entry.IssueID = issue.ID
	entry.Actor = reported.Actor
	entry.ActorID = reported.ActorID
	entry.Action = reported.Action
	entry.Note = reported.Note
	if err := r.pool.QueryRow(ctx, historyQuery,
		entry.IssueID, entry.Actor, entry.ActorID, entry.Action, entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return err
	}
	issue.History = append(issue.History, entry)
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id=$1`, issueColumns)
	issue, err := scanIssueRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	history, err := r.listHistory(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	issue.History = history
	return issue, nil
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	base := fmt.Sprintf(`SELECT %s FROM issues`, issueColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.BuildingID != nil {
		args = append(args, *filter.BuildingID)
		clauses = append(clauses, fmt.Sprintf("apartment_id IN (SELECT id FROM apartments WHERE building_id=$%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Urgencies) > 0 {
		placeholders := make([]string, len(filter.Urgencies))
		for i, urgency := range filter.Urgencies {
			args = append(args, urgency)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("urgency IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssueRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

// ApplyTransition performs the atomic set-plus-append operation: the
// field update (with its status precondition), the history append and
// the optional debt accrual row commit or roll back together.
func (r *issueRepository) ApplyTransition(ctx context.Context, issueID string, update TransitionUpdate) (*domain.Issue, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sets := []string{"updated_at=NOW()"}
	args := []any{}
	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if update.SetStatus != nil {
		addSet("status", *update.SetStatus)
	}
	if update.SetCost != nil {
		addSet("cost", *update.SetCost)
	}
	if update.SetAssigneeID != nil {
		addSet("assignee_id", *update.SetAssigneeID)
	}
	if update.SetETA != nil {
		addSet("eta", *update.SetETA)
	}
	if update.SetETAAck != nil {
		addSet("eta_acknowledged", *update.SetETAAck)
	}

	args = append(args, issueID)
	conditions := []string{fmt.Sprintf("id=$%d", len(args))}
	if update.ExpectStatus != nil {
		args = append(args, *update.ExpectStatus)
		conditions = append(conditions, fmt.Sprintf("status=$%d", len(args)))
	}
	if update.ForbidStatus != nil {
		args = append(args, *update.ForbidStatus)
		conditions = append(conditions, fmt.Sprintf("status<>$%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE issues SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), strings.Join(conditions, " AND "), issueColumns)

	issue, err := scanIssueRow(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if checkErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id=$1)`, issueID).Scan(&exists); checkErr != nil {
				return nil, checkErr
			}
			if exists {
				return nil, ErrStatusPrecondition
			}
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	const historyQuery = `
        INSERT INTO issue_history (issue_id, actor, actor_id, action, note)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	var entry domain.IssueHistory
	entry.IssueID = issueID
	entry.Actor = update.History.Actor
	entry.ActorID = update.History.ActorID
	entry.Action = update.History.Action
	entry.Note = update.History.Note
	if err := tx.QueryRow(ctx, historyQuery,
		entry.IssueID, entry.Actor, entry.ActorID, entry.Action, entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return nil, err
	}

	if update.Accrual != nil {
		const accrualQuery = `
            INSERT INTO debt_accruals (issue_id, tenant_id, amount)
            VALUES ($1,$2,$3)
            ON CONFLICT (issue_id) DO NOTHING`
		if _, err := tx.Exec(ctx, accrualQuery,
			update.Accrual.IssueID, update.Accrual.TenantID, update.Accrual.Amount,
		); err != nil {
			return nil, err
		}
	}

	history, err := r.listHistory(ctx, tx, issueID)
	if err != nil {
		return nil, err
	}
	issue.History = history

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return issue, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *issueRepository) listHistory(ctx context.Context, q queryer, issueID string) ([]domain.IssueHistory, error) {
	const query = `
        SELECT id, issue_id, actor, actor_id, action, note, created_at
        FROM issue_history WHERE issue_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := q.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueHistory
	for rows.Next() {
		var entry domain.IssueHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.IssueID,
			&entry.Actor,
			&entry.ActorID,
			&entry.Action,
			&entry.Note,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanIssueRow(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.ExternalKey,
		&issue.TenantID,
		&issue.ApartmentID,
		&issue.Title,
		&issue.Description,
		&issue.Urgency,
		&issue.Status,
		&issue.AssigneeID,
		&issue.Cost,
		&issue.ETA,
		&issue.ETAAcknowledged,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
