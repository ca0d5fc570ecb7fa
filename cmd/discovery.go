package cmd

import (
	"github.com/spf13/cobra"
)

func newDiscoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discovery",
		Short: "Show registered services",
		Long: `Lists the applications registered with the service registry. An
unreachable registry is reported as unavailable with an empty list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.Discovery.Status(cmd.Context()))
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "routes",
			Short: "Show the gateway route table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.Discovery.Routes(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "communication",
			Short: "Test gateway reachability of each service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.Discovery.Communication(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "loadbalancing APP",
			Short: "Show whether an application has several healthy instances",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.Discovery.LoadBalancing(cmd.Context(), args[0]))
			},
		},
	)
	return cmd
}
