package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/campus-issue-service/internal/domain"
)

// IssueFilter captures the authorization-approved query scope. Services fill
// it from the principal; it is never built from request input directly.
type IssueFilter struct {
	Status     *domain.IssueStatus
	CreatedBy  *string
	AssignedTo *string
}

// IssueRepository encapsulates issue persistence. Listings carry no ordering
// guarantee; callers needing order sort client-side.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	// Assign atomically claims a Pending issue for a staff member: status and
	// assignee change in one statement or not at all. pgx.ErrNoRows means the
	// issue is absent or no longer Pending.
	Assign(ctx context.Context, issueID, staffID string) error
	// Reassign swaps the assignee of an Assigned issue, leaving status alone.
	Reassign(ctx context.Context, issueID, staffID string) error
	// AdvanceStatus moves an issue one step forward, conditional on the
	// expected current status and assignee so a stale writer cannot regress it.
	AdvanceStatus(ctx context.Context, issueID string, current, next domain.IssueStatus, assigneeID string) error
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates the repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (title, category, description, location, priority, image, status, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		issue.Title,
		issue.Category,
		issue.Description,
		issue.Location,
		issue.Priority,
		issue.Image,
		issue.Status,
		issue.CreatedBy.ID,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

const issueSelect = `
        SELECT i.id, i.title, i.category, i.description, i.location, i.priority, i.image, i.status,
               cu.id, cu.name, cu.email, cu.role,
               au.id, au.name, au.email, au.role,
               i.created_at, i.updated_at
        FROM issues i
        JOIN users cu ON cu.id = i.created_by
        LEFT JOIN users au ON au.id = i.assigned_to`

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := issueSelect + " WHERE i.id=$1"
	row := r.pool.QueryRow(ctx, query, id)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("i.status=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("i.created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("i.assigned_to=$%d", len(args)))
	}

	query := fmt.Sprintf("%s WHERE %s", issueSelect, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) Assign(ctx context.Context, issueID, staffID string) error {
	const query = `
        UPDATE issues SET status=$3, assigned_to=$2, updated_at=NOW()
        WHERE id=$1 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query, issueID, staffID, domain.IssueStatusAssigned, domain.IssueStatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) Reassign(ctx context.Context, issueID, staffID string) error {
	const query = `
        UPDATE issues SET assigned_to=$2, updated_at=NOW()
        WHERE id=$1 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, issueID, staffID, domain.IssueStatusAssigned)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) AdvanceStatus(ctx context.Context, issueID string, current, next domain.IssueStatus, assigneeID string) error {
	const query = `
        UPDATE issues SET status=$2, updated_at=NOW()
        WHERE id=$1 AND status=$3 AND assigned_to=$4`
	cmd, err := r.pool.Exec(ctx, query, issueID, next, current, assigneeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var (
		issue         domain.Issue
		assigneeID    *string
		assigneeName  *string
		assigneeEmail *string
		assigneeRole  *domain.Role
	)
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Category,
		&issue.Description,
		&issue.Location,
		&issue.Priority,
		&issue.Image,
		&issue.Status,
		&issue.CreatedBy.ID,
		&issue.CreatedBy.Name,
		&issue.CreatedBy.Email,
		&issue.CreatedBy.Role,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
		&assigneeRole,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if assigneeID != nil {
		issue.AssignedTo = &domain.UserRef{
			ID:    *assigneeID,
			Name:  derefString(assigneeName),
			Email: derefString(assigneeEmail),
		}
		if assigneeRole != nil {
			issue.AssignedTo.Role = *assigneeRole
		}
	}
	return &issue, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
