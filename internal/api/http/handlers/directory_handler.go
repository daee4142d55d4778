package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-issue-service/internal/auth"
	"github.com/spec-kit/campus-issue-service/internal/domain"
	"github.com/spec-kit/campus-issue-service/internal/service"
	apperrors "github.com/spec-kit/campus-issue-service/pkg/util"
)

// DirectoryHandler serves the admin user directories.
type DirectoryHandler struct {
	service *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directoryService *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: directoryService}
}

// Staff GET /issues/staff.
func (h *DirectoryHandler) Staff(c *fiber.Ctx) error {
	return h.listing(c, domain.RoleStaff)
}

// Students GET /issues/student.
func (h *DirectoryHandler) Students(c *fiber.Ctx) error {
	return h.listing(c, domain.RoleStudent)
}

func (h *DirectoryHandler) listing(c *fiber.Ctx, role domain.Role) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	users, err := h.service.ListByRole(c.Context(), principal, role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users})
}
