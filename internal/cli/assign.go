package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
)

// AssignCmd binds complaints in one {city, department} scope to a staff member.
func AssignCmd() *cobra.Command {
	var (
		city       string
		department string
		statuses   []string
	)
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign complaints in a city and department",
		Long: `Pick one eligible staff member for the city and department and bind every
matching complaint to them. Running it again with the same staff and complaints
changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dept := domain.Department(department)
			if !dept.Valid() || dept == domain.DepartmentUnassigned {
				return fmt.Errorf("invalid --department %q", department)
			}
			var wanted []domain.ComplaintStatus
			for _, raw := range statuses {
				status := domain.ComplaintStatus(strings.ToUpper(strings.TrimSpace(raw)))
				if !status.Valid() {
					return fmt.Errorf("invalid --status %q", raw)
				}
				wanted = append(wanted, status)
			}
			return withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				result, err := c.Assignments.AssignAs(ctx, events.SystemActor, strings.TrimSpace(city), dept, wanted)
				if err != nil {
					return fmt.Errorf("assign: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s: %d matched, %d newly assigned to %s\n",
					okMark, city, result.Matched, result.UpdatedCount, result.StaffID)
				if result.Conflicts > 0 {
					fmt.Fprintf(out, "%s %d changed concurrently; rerun to retry\n", warnMark, result.Conflicts)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "city to assign in (required)")
	cmd.Flags().StringVar(&department, "department", "", "department to assign in (required)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "statuses to include (default OPEN,IN_PROGRESS)")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}
