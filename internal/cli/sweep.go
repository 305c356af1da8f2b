package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
)

// SweepCmd runs one SLA sweep.
func SweepCmd() *cobra.Command {
	var (
		at     string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA and escalation sweep now",
		Long: `Evaluate every open and in-progress complaint once: record breaches, advance
escalation by at most one level and retry assignment for unowned complaints.

A sweep already running in this process or, with Redis configured, in another
replica makes this command fail without doing any work.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := bootstrap.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed.UTC()
			}
			return withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				report, err := c.Sweeper.Tick(ctx, now)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				fmt.Fprintf(out, "%s Sweep at %s finished in %s\n", okMark, now.Format(time.RFC3339), report.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "  evaluated: %d\n  updated:   %d\n  breached:  %d\n  escalated: %d\n  assigned:  %d\n",
					report.Evaluated, report.Updated, report.Breached, report.Escalated, report.Assigned)
				if report.Conflicts > 0 || report.Failed > 0 {
					fmt.Fprintf(out, "%s %d deferred by conflicts, %d failed (see logs)\n", warnMark, report.Conflicts, report.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 instant instead of now")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
