package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/observability"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

// RootCmd returns the resolvectl command tree.
func RootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "resolvectl",
		Short:   "Operate the complaint SLA and escalation engine",
		Version: version,
		Long: `resolvectl runs engine operations against the configured store: SLA sweeps,
department backfills, manual assignment, leaderboards and development tokens.

Configuration is read from the environment and an optional .env file, the same
way the API server reads it.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(SweepCmd())
	rootCmd.AddCommand(BackfillDepartmentsCmd())
	rootCmd.AddCommand(AssignCmd())
	rootCmd.AddCommand(LeaderboardCmd())
	rootCmd.AddCommand(TokenCmd())
	return rootCmd
}

// withContainer loads configuration, wires the engine and runs fn against it.
func withContainer(ctx context.Context, fn func(context.Context, *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Command output owns stdout.
	cfg.Logger.Output = "stderr"
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	c, err := bootstrap.New(ctx, cfg, logger.Named("resolvectl"))
	if err != nil {
		return err
	}
	defer c.Close()
	c.Start(ctx)

	if err := fn(ctx, c); err != nil {
		logger.Debug("command failed", zap.Error(err))
		return err
	}
	return nil
}
