package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/searchconsole/internal/admin"
)

func newAdminCmd() *cobra.Command {
	names := make([]string, 0, len(admin.Actions))
	for name := range admin.Actions {
		names = append(names, name)
	}
	sort.Strings(names)

	cmd := &cobra.Command{
		Use:       "admin ACTION",
		Short:     "Run a crawler or indexer admin action",
		Long:      "Runs an admin action. Requires an admin session.\n\nActions: " + strings.Join(names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			action, ok := admin.Actions[args[0]]
			if !ok {
				return fmt.Errorf("unknown admin action %q (want one of %s)", args[0], strings.Join(names, ", "))
			}
			res, err := a.Admin.Execute(cmd.Context(), action)
			if err != nil {
				return errors.New(admin.Alert(err, action.Path))
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "readiness",
		Short: "Check whether admin actions can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			checks := a.Admin.Readiness()
			out := cmd.OutOrStdout()
			for _, c := range checks {
				mark := "ok"
				if !c.OK {
					mark = "FAIL"
				}
				fmt.Fprintf(out, "%-15s %s\n", c.Name, mark)
			}
			if !admin.Ready(checks) {
				return errors.New("admin actions are not available: log in as an admin")
			}
			return nil
		},
	})
	return cmd
}
