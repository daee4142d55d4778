package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "Pending"
	IssueStatusAssigned   IssueStatus = "Assigned"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusResolved   IssueStatus = "Resolved"
)

// IssuePriority enumerates reporter urgency.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "Low"
	IssuePriorityMedium IssuePriority = "Medium"
	IssuePriorityHigh   IssuePriority = "High"
)

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (IssuePriority, bool) {
	switch IssuePriority(raw) {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh:
		return IssuePriority(raw), true
	}
	return "", false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (IssueStatus, bool) {
	switch IssueStatus(raw) {
	case IssueStatusPending, IssueStatusAssigned, IssueStatusInProgress, IssueStatusResolved:
		return IssueStatus(raw), true
	}
	return "", false
}

// Issue is the aggregate for reported facility problems.
// CreatedBy is immutable; AssignedTo is non-nil exactly when the issue has
// reached Assigned or a later state.
type Issue struct {
	ID          string
	Title       string
	Category    string
	Description string
	Location    string
	Priority    IssuePriority
	Image       *string
	Status      IssueStatus
	CreatedBy   UserRef
	AssignedTo  *UserRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status only ever advances; nothing returns an issue to Pending once assigned.
var allowedTransitions = map[IssueStatus][]IssueStatus{
	IssueStatusPending:    {IssueStatusAssigned},
	IssueStatusAssigned:   {IssueStatusInProgress},
	IssueStatusInProgress: {IssueStatusResolved},
	IssueStatusResolved:   {},
}

// CanTransition reports whether current may advance directly to next.
func CanTransition(current, next IssueStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from the status.
func (s IssueStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}
