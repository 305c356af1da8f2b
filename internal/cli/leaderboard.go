package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
)

// LeaderboardCmd prints staff standings.
func LeaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show staff points, badges and the top performer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				stats, err := c.Scorer.Leaderboard(ctx)
				if err != nil {
					return fmt.Errorf("leaderboard: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Staff: %d   Points: %d   Average: %s\n", stats.TotalStaff, stats.TotalPoints, stats.AveragePoints.StringFixed(2))
				if stats.TopPerformer != nil {
					fmt.Fprintf(out, "Top performer: %s\n", color.New(color.FgHiMagenta).Sprintf("%s (%d)", stats.TopPerformer.Staff.ID, stats.TopPerformer.Points))
				}
				fmt.Fprintln(out)
				for i, standing := range stats.Standings {
					if limit > 0 && i >= limit {
						break
					}
					badge := "-"
					if standing.Badge != nil {
						badge = standing.Badge.Name
					}
					fmt.Fprintf(out, "%3d. %-20s %-12s %5d  %s\n", i+1, standing.Staff.ID, standing.Staff.Department, standing.Points, badge)
				}

				names := make([]string, 0, len(stats.BadgeDistribution))
				for name := range stats.BadgeDistribution {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintln(out, "\nBadges:")
				for _, name := range names {
					fmt.Fprintf(out, "  %-10s %d\n", name, stats.BadgeDistribution[name])
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of standings to print (0 for all)")
	return cmd
}
