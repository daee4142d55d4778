package dto

import (
	"time"

	"github.com/spec-kit/campus-issue-service/internal/domain"
)

// CreateIssueRequest is a student submission payload.
type CreateIssueRequest struct {
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Priority    string  `json:"priority"`
	Image       *string `json:"image"`
}

// AssignIssueRequest binds an issue to a staff member.
type AssignIssueRequest struct {
	IssueID string `json:"issueId"`
	StaffID string `json:"staffId"`
}

// UpdateStatusRequest advances an issue's status.
type UpdateStatusRequest struct {
	IssueID string `json:"issueId"`
	Status  string `json:"status"`
}

// IssueResponse is the wire shape of an issue, user references resolved.
type IssueResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Location    string               `json:"location"`
	Priority    domain.IssuePriority `json:"priority"`
	Image       *string              `json:"image,omitempty"`
	Status      domain.IssueStatus   `json:"status"`
	CreatedBy   domain.UserRef       `json:"createdBy"`
	AssignedTo  *domain.UserRef      `json:"assignedTo"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// IssueFromDomain projects a domain issue to its response shape.
func IssueFromDomain(issue *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:          issue.ID,
		Title:       issue.Title,
		Category:    issue.Category,
		Description: issue.Description,
		Location:    issue.Location,
		Priority:    issue.Priority,
		Image:       issue.Image,
		Status:      issue.Status,
		CreatedBy:   issue.CreatedBy,
		AssignedTo:  issue.AssignedTo,
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
	}
}

// IssuesFromDomain projects a listing.
func IssuesFromDomain(issues []domain.Issue) []IssueResponse {
	result := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		result = append(result, IssueFromDomain(&issues[i]))
	}
	return result
}
