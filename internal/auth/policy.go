package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-issue-service/internal/domain"
	apperrors "github.com/spec-kit/campus-issue-service/pkg/util"
)

// Action identifies a capability a principal may exercise.
type Action string

const (
	ActionCreateIssue      Action = "issue.create"
	ActionListOwnIssues    Action = "issue.list_own"
	ActionListAssignedSelf Action = "issue.list_assigned_self"
	ActionListPendingQueue Action = "issue.list_pending"
	ActionListAllIssues    Action = "issue.list_all"
	ActionAssignIssue      Action = "issue.assign"
	ActionReassignIssue    Action = "issue.reassign"
	ActionProgressIssue    Action = "issue.progress"
	ActionListDirectory    Action = "user.list_directory"
	ActionRegisterUser     Action = "user.register"
)

// rolePolicy is the single source of truth for role-based access. The pending
// queue is deliberately visible to every authenticated role: assignment works
// off a shared queue.
var rolePolicy = map[Action][]domain.Role{
	ActionCreateIssue:      {domain.RoleStudent},
	ActionListOwnIssues:    {domain.RoleStudent},
	ActionListAssignedSelf: {domain.RoleStaff},
	ActionListPendingQueue: {domain.RoleStudent, domain.RoleStaff, domain.RoleAdmin},
	ActionListAllIssues:    {domain.RoleAdmin},
	ActionAssignIssue:      {domain.RoleAdmin},
	ActionReassignIssue:    {domain.RoleAdmin},
	ActionProgressIssue:    {domain.RoleStaff},
	ActionListDirectory:    {domain.RoleAdmin},
	ActionRegisterUser:     {domain.RoleAdmin},
}

// Can reports whether the principal's role is permitted to perform the action.
// Ownership conditions (createdBy == self, assignedTo == self) are applied by
// the services as query scoping, never taken from request input.
func Can(principal *Principal, action Action) bool {
	if principal == nil {
		return false
	}
	for _, role := range rolePolicy[action] {
		if principal.Role == role {
			return true
		}
	}
	return false
}

// RequireAction is a route middleware enforcing the policy table.
func RequireAction(action Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !Can(principal, action) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAuthenticated only checks that a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
