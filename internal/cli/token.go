package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/resolvehub/complaint-engine/internal/bootstrap"
)

// TokenCmd mints a bearer token for an existing account. Intended for development
// and operator scripting; production tokens come from the identity provider.
func TokenCmd() *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				account, err := c.StaffRepo.GetByID(ctx, accountID)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return fmt.Errorf("account %s not found", accountID)
					}
					return fmt.Errorf("look up account: %w", err)
				}
				token, expiresAt, err := c.Tokens.GenerateToken(account.ID, account.Role)
				if err != nil {
					return fmt.Errorf("sign token: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, token)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%s) until %s\n", okMark, account.ID, account.Role, expiresAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
