package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/searchconsole/internal/health"
)

func newHealthCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health [SERVICE]",
		Short: "Probe backend service health",
		Long: `Probes every backend service in parallel and prints the overall status:
UP when all services are up, DOWN when none are, DEGRADED otherwise. With
SERVICE, only that service is probed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				for _, svc := range a.Health.Services() {
					if strings.EqualFold(svc.ID, args[0]) || strings.EqualFold(svc.Name, args[0]) {
						h := a.Health.CheckService(cmd.Context(), svc)
						if asJSON {
							return printJSON(out, h)
						}
						fmt.Fprintln(out, health.Describe(h))
						return nil
					}
				}
				return fmt.Errorf("unknown service %q", args[0])
			}

			sys := a.Health.Check(cmd.Context())
			if asJSON {
				return printJSON(out, sys)
			}
			fmt.Fprintf(out, "overall: %s\n", sys.Overall)
			for _, h := range sys.Services {
				fmt.Fprintf(out, "  %-16s %-5s %6dms  %s\n", h.ID, h.Status, h.ResponseTime.Milliseconds(), health.Describe(h))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
