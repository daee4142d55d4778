package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/campus-issue-service/internal/domain"
	"github.com/spec-kit/campus-issue-service/internal/repository"
)

// In-memory repository fakes mirroring the Postgres semantics the services
// rely on: pgx.ErrNoRows for absent rows and conditional writes that fail
// when the expected pre-state no longer holds.

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("duplicate email %s", user.Email)
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Role == role {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (r *memUserRepo) seed(name, email string, role domain.Role) *domain.User {
	user := &domain.User{Name: name, Email: email, PasswordHash: "x", Role: role}
	if err := r.Create(context.Background(), user); err != nil {
		panic(err)
	}
	return user
}

type memIssueRepo struct {
	mu     sync.Mutex
	seq    int
	users  *memUserRepo
	issues map[string]*domain.Issue
}

func newMemIssueRepo(users *memUserRepo) *memIssueRepo {
	return &memIssueRepo{users: users, issues: make(map[string]*domain.Issue)}
}

func (r *memIssueRepo) Create(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	issue.ID = fmt.Sprintf("issue-%d", r.seq)
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	r.issues[issue.ID] = cloneIssue(issue)
	return nil
}

func (r *memIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneIssue(issue), nil
}

func (r *memIssueRepo) ListWithFilter(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, issue := range r.issues {
		if filter.Status != nil && issue.Status != *filter.Status {
			continue
		}
		if filter.CreatedBy != nil && issue.CreatedBy.ID != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (issue.AssignedTo == nil || issue.AssignedTo.ID != *filter.AssignedTo) {
			continue
		}
		result = append(result, *cloneIssue(issue))
	}
	return result, nil
}

func (r *memIssueRepo) Assign(ctx context.Context, issueID, staffID string) error {
	staff, err := r.users.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok || issue.Status != domain.IssueStatusPending {
		return pgx.ErrNoRows
	}
	ref := staff.Ref()
	issue.Status = domain.IssueStatusAssigned
	issue.AssignedTo = &ref
	issue.UpdatedAt = time.Now()
	return nil
}

func (r *memIssueRepo) Reassign(ctx context.Context, issueID, staffID string) error {
	staff, err := r.users.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok || issue.Status != domain.IssueStatusAssigned {
		return pgx.ErrNoRows
	}
	ref := staff.Ref()
	issue.AssignedTo = &ref
	issue.UpdatedAt = time.Now()
	return nil
}

func (r *memIssueRepo) AdvanceStatus(_ context.Context, issueID string, current, next domain.IssueStatus, assigneeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok || issue.Status != current || issue.AssignedTo == nil || issue.AssignedTo.ID != assigneeID {
		return pgx.ErrNoRows
	}
	issue.Status = next
	issue.UpdatedAt = time.Now()
	return nil
}

func cloneIssue(issue *domain.Issue) *domain.Issue {
	clone := *issue
	if issue.AssignedTo != nil {
		ref := *issue.AssignedTo
		clone.AssignedTo = &ref
	}
	return &clone
}

// recordingCache counts cache traffic for assertions.
type recordingCache struct {
	mu            sync.Mutex
	data          []domain.Issue
	hasData       bool
	sets          int
	invalidations int
}

func (c *recordingCache) Get(context.Context) ([]domain.Issue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasData {
		return nil, false
	}
	return c.data, true
}

func (c *recordingCache) Set(_ context.Context, issues []domain.Issue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = issues
	c.hasData = true
	c.sets++
}

func (c *recordingCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.hasData = false
	c.invalidations++
}
