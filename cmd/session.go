package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/searchconsole/internal/config"
	"github.com/JakeFAU/searchconsole/internal/session"
)

func newLoginCmd() *cobra.Command {
	var creds session.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long: `Exchanges credentials for a token pair and stores the session record.
The password comes from --password, then ` + config.EnvPrefix + `_PASSWORD, then
the first line of stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if creds.Password == "" {
				creds.Password = os.Getenv(config.EnvPrefix + "_PASSWORD")
			}
			if creds.Password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				creds.Password = strings.TrimRight(line, "\r\n")
			}
			user, err := a.Session.Login(cmd.Context(), creds)
			if err != nil {
				return describeError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (roles: %s)\n", user.Username, strings.Join(user.Roles(), ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Session.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", describeError(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			snap := a.Session.Snapshot()
			out := map[string]any{
				"state":         snap.State.String(),
				"authenticated": snap.Authenticated,
				"admin":         a.Session.IsAdmin(),
				"roles":         snap.Roles,
			}
			if snap.User != nil {
				out["username"] = snap.User.Username
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
