package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resolvehub/complaint-engine/internal/api/http/handlers"
	"github.com/resolvehub/complaint-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	Leaderboard    *handlers.LeaderboardHandler
	Admin          *handlers.AdminHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	complaints := api.Group("/complaints", auth.RequireRole())
	complaints.Post("/", cfg.Complaints.CreateComplaint)
	complaints.Get("/", cfg.Complaints.ListComplaints)
	complaints.Get("/:id", cfg.Complaints.GetComplaint)
	complaints.Post("/:id/status", auth.RequireStaff(), cfg.Complaints.ChangeStatus)
	complaints.Get("/:id/history", auth.RequireStaff(), cfg.Complaints.ListHistory)

	api.Get("/staff/leaderboard", auth.RequireStaff(), cfg.Leaderboard.Leaderboard)

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.Post("/sweep", cfg.Admin.RunSweep)
	admin.Post("/departments/backfill", cfg.Admin.BackfillDepartments)
	admin.Post("/assignments", cfg.Admin.Assign)
	admin.Get("/staff", cfg.Staff.ListStaff)
	admin.Post("/staff", cfg.Staff.CreateStaff)
	admin.Get("/staff/:id", cfg.Staff.GetStaff)
	admin.Patch("/staff/:id", cfg.Staff.UpdateStaff)
}
