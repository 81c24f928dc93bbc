package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/propertyhub/maintenance-service/internal/api/http/handlers"
	"github.com/propertyhub/maintenance-service/internal/auth"
	"github.com/propertyhub/maintenance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Issues         *handlers.IssuesHandler
	StaffIssues    *handlers.StaffIssuesHandler
	Buildings      *handlers.BuildingsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/tenants/register", cfg.Users.RegisterTenant)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	tenant := app.Group("/issues", cfg.AuthMiddleware.Handle, auth.RequireTenant())
	tenant.Post("/", cfg.Issues.CreateIssue)
	tenant.Get("/", cfg.Issues.ListIssues)
	tenant.Get("/:id", cfg.Issues.GetIssue)
	tenant.Post("/:id/eta/ack", cfg.Issues.AcknowledgeETA)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("/issues", cfg.StaffIssues.ListIssues)
	staff.Get("/issues/:id", cfg.StaffIssues.GetIssue)
	staff.Post("/issues/:id/status", cfg.StaffIssues.Transition)
	staff.Post("/issues/:id/eta", auth.RequireRole(domain.RoleAssociate), cfg.StaffIssues.SetETA)

	admin := staff.Group("", auth.RequireRole(domain.RoleAdmin))
	admin.Post("/users", cfg.Users.RegisterStaff)
	admin.Post("/users/:id/activate", cfg.Users.Activate)
	admin.Post("/buildings", cfg.Buildings.CreateBuilding)
	admin.Post("/buildings/:id/apartments", cfg.Buildings.CreateApartment)

	staff.Get("/buildings", cfg.Buildings.ListBuildings)
	staff.Get("/buildings/:id/apartments", cfg.Buildings.ListApartments)
}
