package bootstrap

import (
	"github.com/gofiber/fiber/v2"

	httptransport "github.com/resolvehub/complaint-engine/internal/api/http"
	"github.com/resolvehub/complaint-engine/internal/api/http/handlers"
	"github.com/resolvehub/complaint-engine/internal/auth"
)

// NewHTTPApp builds the fiber application serving the read model, operator actions
// and probes.
func NewHTTPApp(c *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               c.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, c.Logger.Named("http"), c.Metrics, c.Config.App.RequestTimeout())

	var postgres handlers.Dependency
	if c.Postgres != nil {
		postgres = c.Postgres
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(c.Config.App.Name, c.Config.App.Version, postgres, c.Redis),
		Complaints:     handlers.NewComplaintsHandler(c.Complaints),
		Leaderboard:    handlers.NewLeaderboardHandler(c.Scorer),
		Admin:          handlers.NewAdminHandler(c.Sweeper, c.Router, c.Assignments, Now),
		Staff:          handlers.NewStaffHandler(c.Staff),
		AuthMiddleware: auth.NewAuthMiddleware(c.Tokens, c.StaffRepo),
		Gatherer:       c.Registry,
	})
	return app
}
