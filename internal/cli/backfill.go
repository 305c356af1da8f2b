package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
)

// BackfillDepartmentsCmd routes complaints stored without a department.
func BackfillDepartmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-departments",
		Short: "Route complaints that were stored without a department",
		Long: `Assign a department to every complaint whose department is empty, using the
category table. Complaints that already have a department are never changed.
Safe to run multiple times (idempotent).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				report, err := c.Router.Backfill(ctx)
				if err != nil {
					return fmt.Errorf("backfill departments: %w", err)
				}
				out := cmd.OutOrStdout()
				if report.Scanned == 0 {
					fmt.Fprintln(out, "No complaints without a department.")
					return nil
				}
				fmt.Fprintf(out, "%s Routed %d of %d complaints\n", okMark, report.Updated, report.Scanned)
				if report.Conflicts > 0 {
					fmt.Fprintf(out, "%s %d changed concurrently; rerun to retry\n", warnMark, report.Conflicts)
				}
				for _, id := range report.Unknown {
					fmt.Fprintf(out, "%s unknown category, left for review: %s\n", warnMark, id)
				}
				return nil
			})
		},
	}
}
