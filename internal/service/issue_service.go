package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/campus-issue-service/internal/auth"
	"github.com/spec-kit/campus-issue-service/internal/domain"
	"github.com/spec-kit/campus-issue-service/internal/events"
	"github.com/spec-kit/campus-issue-service/internal/repository"
	apperrors "github.com/spec-kit/campus-issue-service/pkg/util"
)

// PendingCache caches the shared pending queue. Implementations may be
// unavailable; callers always fall back to the repository.
type PendingCache interface {
	Get(ctx context.Context) ([]domain.Issue, bool)
	Set(ctx context.Context, issues []domain.Issue)
	Invalidate(ctx context.Context)
}

// IssueService coordinates the issue lifecycle. Every operation checks the
// policy table first; ownership scoping is derived from the principal, never
// from request input.
type IssueService struct {
	issues     repository.IssueRepository
	users      repository.UserRepository
	cache      PendingCache
	dispatcher events.Dispatcher
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo  repository.IssueRepository
	UserRepo   repository.UserRepository
	Cache      PendingCache
	Dispatcher events.Dispatcher
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	cache := deps.Cache
	if cache == nil {
		cache = noopCache{}
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		users:      deps.UserRepo,
		cache:      cache,
		dispatcher: deps.Dispatcher,
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context) ([]domain.Issue, bool) { return nil, false }
func (noopCache) Set(context.Context, []domain.Issue)        {}
func (noopCache) Invalidate(context.Context)                 {}

// CreateIssueInput describes a student submission.
type CreateIssueInput struct {
	Title       string
	Category    string
	Description string
	Location    string
	Priority    string
	Image       *string
}

// Create submits a new issue on behalf of the student principal.
func (s *IssueService) Create(ctx context.Context, principal *auth.Principal, input CreateIssueInput) (*domain.Issue, error) {
	if !auth.Can(principal, auth.ActionCreateIssue) {
		return nil, apperrors.NewForbidden("insufficient role")
	}

	missing := []string{}
	for field, value := range map[string]string{
		"title":       input.Title,
		"category":    input.Category,
		"description": input.Description,
		"location":    input.Location,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	priority := domain.IssuePriorityLow
	if input.Priority != "" {
		parsed, ok := domain.ParsePriority(input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
		}
		priority = parsed
	}

	issue := &domain.Issue{
		Title:       strings.TrimSpace(input.Title),
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Priority:    priority,
		Image:       input.Image,
		Status:      domain.IssueStatusPending,
		CreatedBy:   principal.User.Ref(),
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)
	s.publish(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   actor(principal),
		Payload: events.IssueCreatedPayload{
			Title:    issue.Title,
			Category: issue.Category,
			Location: issue.Location,
			Priority: issue.Priority,
		},
	})
	return issue, nil
}

// StudentIssues lists the principal's own issues in the given status.
func (s *IssueService) StudentIssues(ctx context.Context, principal *auth.Principal, status domain.IssueStatus) ([]domain.Issue, error) {
	if !auth.Can(principal, auth.ActionListOwnIssues) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	filter := repository.IssueFilter{Status: &status, CreatedBy: &principal.ID}
	issues, err := s.issues.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// StaffIssues lists issues assigned to the staff principal in the given status.
func (s *IssueService) StaffIssues(ctx context.Context, principal *auth.Principal, status domain.IssueStatus) ([]domain.Issue, error) {
	if !auth.Can(principal, auth.ActionListAssignedSelf) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	filter := repository.IssueFilter{Status: &status, AssignedTo: &principal.ID}
	issues, err := s.issues.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// PendingQueue lists all pending issues. The queue is shared: every
// authenticated role sees the same unfiltered list.
func (s *IssueService) PendingQueue(ctx context.Context, principal *auth.Principal) ([]domain.Issue, error) {
	if !auth.Can(principal, auth.ActionListPendingQueue) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}
	status := domain.IssueStatusPending
	issues, err := s.issues.ListWithFilter(ctx, repository.IssueFilter{Status: &status})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.Set(ctx, issues)
	return issues, nil
}

// AdminIssues lists issues system-wide, optionally narrowed to one status.
func (s *IssueService) AdminIssues(ctx context.Context, principal *auth.Principal, status *domain.IssueStatus) ([]domain.Issue, error) {
	if !auth.Can(principal, auth.ActionListAllIssues) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	issues, err := s.issues.ListWithFilter(ctx, repository.IssueFilter{Status: status})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// Assign binds a Pending issue to a staff member, moving it to Assigned.
// Status and assignee change atomically; an issue that already left Pending
// cannot be claimed through this path.
func (s *IssueService) Assign(ctx context.Context, principal *auth.Principal, issueID, staffID string) (*domain.Issue, error) {
	if !auth.Can(principal, auth.ActionAssignIssue) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if err := s.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}

	if err := s.issues.Assign(ctx, issueID, staffID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.explainAssignFailure(ctx, issueID)
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)

	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventIssueAssigned,
		IssueID: issue.ID,
		Actor:   actor(principal),
		Payload: events.IssueAssignedPayload{AssigneeID: staffID},
	})
	return issue, nil
}

// Reassign overwrites the assignee of an Assigned issue, leaving status at
// Assigned. Choosing the current assignee again is a tolerated no-op.
func (s *IssueService) Reassign(ctx context.Context, principal *auth.Principal, issueID, staffID string) (*domain.Issue, error) {
	if !auth.Can(principal, auth.ActionReassignIssue) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if err := s.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}

	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issueId": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	if issue.Status != domain.IssueStatusAssigned {
		return nil, apperrors.NewInvalidTransition("issue is not assigned", map[string]any{"status": issue.Status})
	}
	if issue.AssignedTo != nil && issue.AssignedTo.ID == staffID {
		return issue, nil
	}

	if err := s.issues.Reassign(ctx, issueID, staffID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// the issue advanced past Assigned between read and write
			return nil, apperrors.NewInvalidTransition("issue is not assigned", nil)
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)

	updated, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventIssueAssigned,
		IssueID: updated.ID,
		Actor:   actor(principal),
		Payload: events.IssueAssignedPayload{AssigneeID: staffID, Reassigned: true},
	})
	return updated, nil
}

// Progress advances an issue the staff principal is assigned to by exactly
// one forward step. Issues assigned to someone else are reported as absent so
// assignment details never leak across staff.
func (s *IssueService) Progress(ctx context.Context, principal *auth.Principal, issueID string, next domain.IssueStatus) (*domain.Issue, error) {
	if !auth.Can(principal, auth.ActionProgressIssue) {
		return nil, apperrors.NewForbidden("insufficient role")
	}

	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issueId": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	if issue.AssignedTo == nil || issue.AssignedTo.ID != principal.ID {
		return nil, apperrors.NewNotFound("issue", map[string]any{"issueId": issueID})
	}
	if !domain.CanTransition(issue.Status, next) {
		return nil, apperrors.NewInvalidTransition("status transition not allowed", map[string]any{
			"from": issue.Status,
			"to":   next,
		})
	}

	if err := s.issues.AdvanceStatus(ctx, issueID, issue.Status, next, principal.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidTransition("status transition not allowed", nil)
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)

	updated, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: updated.ID,
		Actor:   actor(principal),
		Payload: events.IssueStatusChangedPayload{OldStatus: issue.Status, NewStatus: next},
	})
	return updated, nil
}

// requireStaff verifies the assignment target exists and holds the staff role.
func (s *IssueService) requireStaff(ctx context.Context, staffID string) error {
	staff, err := s.users.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("staff", map[string]any{"staffId": staffID})
		}
		return apperrors.MapError(err)
	}
	if staff.Role != domain.RoleStaff {
		return apperrors.NewValidationError("assignee must be a staff member", map[string]any{"staffId": staffID})
	}
	return nil
}

// explainAssignFailure disambiguates a failed conditional assign: either the
// issue does not exist or it already left Pending.
func (s *IssueService) explainAssignFailure(ctx context.Context, issueID string) error {
	if _, err := s.issues.GetByID(ctx, issueID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("issue", map[string]any{"issueId": issueID})
		}
		return apperrors.MapError(err)
	}
	return apperrors.NewInvalidTransition("issue is not pending", map[string]any{"issueId": issueID})
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actor(principal *auth.Principal) events.Actor {
	return events.Actor{UserID: principal.ID, Role: principal.Role}
}
