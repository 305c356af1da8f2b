package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire engine", zap.Error(err))
	}
	defer container.Close()
	container.Start(ctx)

	schedulerDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		sched := container.Scheduler()
		go func() {
			defer close(schedulerDone)
			if err := sched.Run(ctx); err != nil {
				logger.Error("sla scheduler stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Info("sla scheduler disabled")
		close(schedulerDone)
	}

	app := bootstrap.NewHTTPApp(container)
	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	<-schedulerDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
