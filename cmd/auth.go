package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/gcalkit/internal/calendar"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google Calendar sign-in",
		Long: `Sign in to Google Calendar, sign out, or show the sign-in state.

Tokens are cached per account in the user cache directory and refreshed
automatically. Use --account to keep several Google accounts side by side.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Sign in through the OAuth consent page",
		Long: `Sign in through the OAuth consent page. The command prints a URL; open it,
grant access and paste back the authorization code or the full URL you were
redirected to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, cfg calendar.Config) error {
				if cfg.ClientID == "" {
					return fmt.Errorf("a client ID is required to sign in (use --client-id or %s)", envClientID)
				}
				if err := svc.SignIn(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in to Google Calendar (account: %s)\n", cfg.Account)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Sign out, revoke the granted access and remove the cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, cfg calendar.Config) error {
				signedIn, err := svc.IsClientAuthenticated(ctx)
				if err != nil {
					return err
				}
				if !signedIn {
					fmt.Fprintf(cmd.OutOrStdout(), "Not signed in (account: %s)\n", cfg.Account)
					return nil
				}
				if err := svc.SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out of Google Calendar (account: %s)\n", cfg.Account)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the account is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, cfg calendar.Config) error {
				signedIn, err := svc.IsClientAuthenticated(ctx)
				if err != nil {
					return err
				}
				state := "signed out"
				if signedIn {
					state = "signed in"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s: %s\n", cfg.Account, state)
				return nil
			})
		},
	})

	return cmd
}
