package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/campus-issue-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Issues         *handlers.IssuesHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role rules live in the policy table; the
// route layer only names the action each endpoint exercises.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.AuthMiddleware.Handle, auth.RequireAction(auth.ActionRegisterUser), cfg.Auth.Register)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.Me)

	issues := app.Group("/issues", cfg.AuthMiddleware.Handle)

	issues.Post("/create", auth.RequireAction(auth.ActionCreateIssue), cfg.Issues.Create)

	issues.Get("/student/openIssues", auth.RequireAction(auth.ActionListOwnIssues), cfg.Issues.StudentOpen)
	issues.Get("/student/assignedIssues", auth.RequireAction(auth.ActionListOwnIssues), cfg.Issues.StudentAssigned)
	issues.Get("/student/resolved", auth.RequireAction(auth.ActionListOwnIssues), cfg.Issues.StudentResolved)

	issues.Get("/staff/assignedIssues", auth.RequireAction(auth.ActionListAssignedSelf), cfg.Issues.StaffAssigned)
	issues.Get("/staff/resolved", auth.RequireAction(auth.ActionListAssignedSelf), cfg.Issues.StaffResolved)

	issues.Get("/pending", auth.RequireAction(auth.ActionListPendingQueue), cfg.Issues.Pending)

	issues.Get("/openIssues", auth.RequireAction(auth.ActionListAllIssues), cfg.Issues.AdminAll)
	issues.Get("/assigned", auth.RequireAction(auth.ActionListAllIssues), cfg.Issues.AdminAssigned)
	issues.Get("/resolved", auth.RequireAction(auth.ActionListAllIssues), cfg.Issues.AdminResolved)

	issues.Put("/assign", auth.RequireAction(auth.ActionAssignIssue), cfg.Issues.Assign)
	issues.Put("/reassign", auth.RequireAction(auth.ActionReassignIssue), cfg.Issues.Reassign)
	issues.Put("/status", auth.RequireAction(auth.ActionProgressIssue), cfg.Issues.UpdateStatus)

	issues.Get("/staff", auth.RequireAction(auth.ActionListDirectory), cfg.Directory.Staff)
	issues.Get("/student", auth.RequireAction(auth.ActionListDirectory), cfg.Directory.Students)
}
