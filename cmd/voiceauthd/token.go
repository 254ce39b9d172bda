package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// tokenRootCmd returns the top-level "token" command group for API token
// management. Tokens authenticate API clients; the raw value is printed once
// at creation and only its hash is stored.
func tokenRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API client tokens",
		Long: `Create, list and revoke API client tokens. A token bound to a subject may
only act for that user; a trusted token belongs to an internal service that
supplies the user identity from its own authenticated session.`,
	}

	cmd.AddCommand(tokenCreateCmd())
	cmd.AddCommand(tokenListCmd())
	cmd.AddCommand(tokenRevokeCmd())

	return cmd
}

func tokenCreateCmd() *cobra.Command {
	var (
		subject string
		trusted bool
	)

	cmd := &cobra.Command{
		Use:   "create <client-name>",
		Short: "Create a new API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if subject != "" && trusted {
				return fmt.Errorf("a token is either subject-bound or trusted, not both")
			}

			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			raw, err := eng.tokens.Create(context.Background(), args[0], subject, trusted)
			if err != nil {
				return fmt.Errorf("failed to create token: %w", err)
			}

			fmt.Printf("Token created for %q.\n", args[0])
			if subject != "" {
				fmt.Printf("  Bound to user: %s\n", subject)
			}
			if trusted {
				fmt.Println("  Trusted: yes (may act for any user, may read scores)")
			}
			fmt.Println()
			fmt.Printf("  %s\n", raw)
			fmt.Println()
			fmt.Println("Store this token now; it cannot be recovered later.")
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "bind the token to one user identity")
	cmd.Flags().BoolVar(&trusted, "trusted", false, "mark the token as a trusted internal service")

	return cmd
}

func tokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			infos, err := eng.tokens.List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list tokens: %w", err)
			}
			if len(infos) == 0 {
				fmt.Println("No active tokens.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN ID\tCLIENT\tSUBJECT\tTRUSTED\tCREATED\tLAST USED")
			for _, info := range infos {
				lastUsed := "never"
				if !info.LastUsedAt.IsZero() {
					lastUsed = info.LastUsedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
					info.TokenID, info.ClientName, info.Subject, info.Trusted,
					info.CreatedAt.Format(time.RFC3339), lastUsed)
			}
			return w.Flush()
		},
	}
}

func tokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Deactivate an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.tokens.Deactivate(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Token %s deactivated.\n", args[0])
			return nil
		},
	}
}
