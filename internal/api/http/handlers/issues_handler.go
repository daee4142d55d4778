package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-issue-service/internal/api/dto"
	"github.com/spec-kit/campus-issue-service/internal/auth"
	"github.com/spec-kit/campus-issue-service/internal/domain"
	"github.com/spec-kit/campus-issue-service/internal/service"
	apperrors "github.com/spec-kit/campus-issue-service/pkg/util"
)

// IssuesHandler manages the issue lifecycle endpoints.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// Create POST /issues/create.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	issue, err := h.service.Create(c.Context(), principal, service.CreateIssueInput{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
		Priority:    req.Priority,
		Image:       req.Image,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"issue": dto.IssueFromDomain(issue)})
}

// StudentOpen GET /issues/student/openIssues.
func (h *IssuesHandler) StudentOpen(c *fiber.Ctx) error {
	return h.studentListing(c, domain.IssueStatusPending)
}

// StudentAssigned GET /issues/student/assignedIssues.
func (h *IssuesHandler) StudentAssigned(c *fiber.Ctx) error {
	return h.studentListing(c, domain.IssueStatusAssigned)
}

// StudentResolved GET /issues/student/resolved.
func (h *IssuesHandler) StudentResolved(c *fiber.Ctx) error {
	return h.studentListing(c, domain.IssueStatusResolved)
}

func (h *IssuesHandler) studentListing(c *fiber.Ctx, status domain.IssueStatus) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issues, err := h.service.StudentIssues(c.Context(), principal, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issues": dto.IssuesFromDomain(issues)})
}

// StaffAssigned GET /issues/staff/assignedIssues.
func (h *IssuesHandler) StaffAssigned(c *fiber.Ctx) error {
	return h.staffListing(c, domain.IssueStatusAssigned)
}

// StaffResolved GET /issues/staff/resolved.
func (h *IssuesHandler) StaffResolved(c *fiber.Ctx) error {
	return h.staffListing(c, domain.IssueStatusResolved)
}

func (h *IssuesHandler) staffListing(c *fiber.Ctx, status domain.IssueStatus) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issues, err := h.service.StaffIssues(c.Context(), principal, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issues": dto.IssuesFromDomain(issues)})
}

// Pending GET /issues/pending. The queue is shared across all roles.
func (h *IssuesHandler) Pending(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issues, err := h.service.PendingQueue(c.Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issues": dto.IssuesFromDomain(issues)})
}

// AdminAll GET /issues/openIssues. Every issue, all statuses.
func (h *IssuesHandler) AdminAll(c *fiber.Ctx) error {
	return h.adminListing(c, nil)
}

// AdminAssigned GET /issues/assigned.
func (h *IssuesHandler) AdminAssigned(c *fiber.Ctx) error {
	status := domain.IssueStatusAssigned
	return h.adminListing(c, &status)
}

// AdminResolved GET /issues/resolved.
func (h *IssuesHandler) AdminResolved(c *fiber.Ctx) error {
	status := domain.IssueStatusResolved
	return h.adminListing(c, &status)
}

func (h *IssuesHandler) adminListing(c *fiber.Ctx, status *domain.IssueStatus) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issues, err := h.service.AdminIssues(c.Context(), principal, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issues": dto.IssuesFromDomain(issues)})
}

// Assign PUT /issues/assign.
func (h *IssuesHandler) Assign(c *fiber.Ctx) error {
	principal, req, err := h.assignRequest(c)
	if err != nil {
		return err
	}
	issue, err := h.service.Assign(c.Context(), principal, req.IssueID, req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issue": dto.IssueFromDomain(issue)})
}

// Reassign PUT /issues/reassign. Overwrites the assignee of an Assigned issue.
func (h *IssuesHandler) Reassign(c *fiber.Ctx) error {
	principal, req, err := h.assignRequest(c)
	if err != nil {
		return err
	}
	issue, err := h.service.Reassign(c.Context(), principal, req.IssueID, req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issue": dto.IssueFromDomain(issue)})
}

func (h *IssuesHandler) assignRequest(c *fiber.Ctx) (*auth.Principal, *dto.AssignIssueRequest, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, nil, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IssueID == "" || req.StaffID == "" {
		return nil, nil, apperrors.NewValidationError("issueId and staffId required", nil)
	}
	return principal, &req, nil
}

// UpdateStatus PUT /issues/status. Staff-only forward progression.
func (h *IssuesHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IssueID == "" || req.Status == "" {
		return apperrors.NewValidationError("issueId and status required", nil)
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": req.Status})
	}

	issue, err := h.service.Progress(c.Context(), principal, req.IssueID, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"issue": dto.IssueFromDomain(issue)})
}
