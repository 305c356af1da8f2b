package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/auth"
	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/observability"
	"github.com/resolvehub/complaint-engine/internal/persistence"
	"github.com/resolvehub/complaint-engine/internal/repository"
	"github.com/resolvehub/complaint-engine/internal/scheduler"
	"github.com/resolvehub/complaint-engine/internal/service"
	"github.com/resolvehub/complaint-engine/internal/worker"
)

// Container holds the wired engine shared by the API server and the operator CLI.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Postgres *persistence.Postgres
	Redis    *persistence.Redis

	ComplaintRepo repository.ComplaintRepository
	StaffRepo     repository.StaffRepository
	HistoryRepo   repository.ComplaintHistoryRepository

	Dispatcher    events.Dispatcher
	Worker        *worker.NotificationWorker
	Notifications *service.NotificationService

	Router      *service.DepartmentRouter
	Clock       *service.SLAClock
	Engine      *service.EscalationEngine
	Assignments *service.AssignmentService
	Scorer      *service.GamificationService
	Complaints  *service.ComplaintService
	Staff       *service.StaffService
	Sweeper     *scheduler.Sweeper
	Tokens      *auth.TokenManager
}

// New connects storage and wires every engine component. Without a Postgres DSN the
// engine runs on in-memory stores; without a Redis address sweeps lock per process.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = observability.NewMetrics(c.Registry)

	if err := c.openStorage(ctx); err != nil {
		return nil, err
	}
	c.wire()

	if cfg.SeedFile != "" {
		members, err := LoadSeed(cfg.SeedFile)
		if err != nil {
			c.Close()
			return nil, err
		}
		if _, err := Seed(ctx, c.StaffRepo, members, logger); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) openStorage(ctx context.Context) error {
	cfg := c.Config
	if cfg.Postgres.DSN == "" {
		c.Logger.Warn("POSTGRES_DSN not provided; using in-memory stores")
		c.ComplaintRepo = repository.NewMemoryComplaintRepository()
		c.StaffRepo = repository.NewMemoryStaffRepository()
		c.HistoryRepo = repository.NewMemoryComplaintHistoryRepository()
	} else {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, c.Logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		c.Postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, c.Logger); err != nil {
				pg.Close()
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		c.ComplaintRepo = repository.NewComplaintRepository(pool)
		c.StaffRepo = repository.NewStaffRepository(pool)
		c.HistoryRepo = repository.NewComplaintHistoryRepository(pool)
	}
	c.Redis = persistence.NewRedis(cfg.Redis, c.Logger)
	return nil
}

func (c *Container) wire() {
	cfg := c.Config
	logger := c.Logger
	rules := cfg.Rules

	c.Dispatcher = events.NewInMemoryDispatcher()
	c.Worker = worker.NewNotificationWorker(cfg.Notification.Workers, cfg.Notification.QueueSize, logger.Named("notifications"))
	c.Notifications = service.NewNotificationService(c.Dispatcher, c.Worker, c.notifier(), c.Metrics, logger.Named("notifications"))
	c.Notifications.RegisterHandlers()

	history := service.NewHistoryRecorder(c.HistoryRepo, logger)
	c.Router = service.NewDepartmentRouter(service.DepartmentRouterDependencies{
		Rules:         rules,
		ComplaintRepo: c.ComplaintRepo,
		History:       history,
		Metrics:       c.Metrics,
		Logger:        logger.Named("router"),
	})
	c.Clock = service.NewSLAClock(rules.SLA)
	c.Assignments = service.NewAssignmentService(service.AssignmentDependencies{
		ComplaintRepo: c.ComplaintRepo,
		StaffRepo:     c.StaffRepo,
		Tiers:         rules.Escalation.Tiers,
		History:       history,
		Dispatcher:    c.Dispatcher,
		Metrics:       c.Metrics,
		Logger:        logger.Named("assignment"),
	})
	c.Engine = service.NewEscalationEngine(rules.Escalation, c.Assignments, logger.Named("escalation"))
	c.Scorer = service.NewGamificationService(service.GamificationDependencies{
		Rules:         rules.Scoring,
		StaffRepo:     c.StaffRepo,
		ComplaintRepo: c.ComplaintRepo,
		Metrics:       c.Metrics,
		Logger:        logger.Named("scoring"),
	})
	c.Complaints = service.NewComplaintService(service.ComplaintDependencies{
		ComplaintRepo: c.ComplaintRepo,
		StaffRepo:     c.StaffRepo,
		HistoryRepo:   c.HistoryRepo,
		History:       history,
		Router:        c.Router,
		Clock:         c.Clock,
		Assignments:   c.Assignments,
		Scorer:        c.Scorer,
		Dispatcher:    c.Dispatcher,
		Logger:        logger.Named("complaints"),
	})
	c.Staff = service.NewStaffService(service.StaffDependencies{
		StaffRepo:     c.StaffRepo,
		ComplaintRepo: c.ComplaintRepo,
		Assignments:   c.Assignments,
		Logger:        logger.Named("staff"),
	})

	deps := scheduler.SweeperDependencies{
		ComplaintRepo: c.ComplaintRepo,
		Clock:         c.Clock,
		Engine:        c.Engine,
		Assigner:      c.Assignments,
		History:       history,
		Dispatcher:    c.Dispatcher,
		Metrics:       c.Metrics,
		Logger:        logger.Named("sweep"),
		LockTTL:       cfg.Scheduler.LockTTL,
	}
	if c.Redis.Enabled() {
		deps.Locker = c.Redis
	}
	c.Sweeper = scheduler.NewSweeper(deps)
	c.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
}

func (c *Container) notifier() service.Notifier {
	logNotifier := service.NewLogNotifier(c.Logger.Named("notify"))
	if c.Config.Notification.WebhookURL == "" {
		return logNotifier
	}
	return service.MultiNotifier{
		logNotifier,
		service.NewWebhookNotifier(c.Config.Notification.WebhookURL, c.Config.Notification.Timeout()),
	}
}

// Start launches background notification delivery.
func (c *Container) Start(ctx context.Context) {
	c.Worker.Start(ctx)
}

// Scheduler builds the periodic sweep driver from configuration.
func (c *Container) Scheduler() *scheduler.Service {
	return scheduler.NewService(c.Sweeper,
		scheduler.WithLogger(c.Logger.Named("scheduler")),
		scheduler.WithInterval(c.Config.Scheduler.Interval),
		scheduler.WithTimeout(c.Config.Scheduler.Timeout),
	)
}

// Close drains pending notifications and releases connections.
func (c *Container) Close() {
	if c.Worker != nil {
		c.Worker.Stop()
	}
	c.Redis.Close()
	c.Postgres.Close()
}

// Now is the wall clock used by operator entry points.
func Now() time.Time {
	return time.Now().UTC()
}
