package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/searchconsole/internal/crawl"
)

// newCrawlCmd creates the 'crawl' command and its status subcommands.
func newCrawlCmd() *cobra.Command {
	var priority, maxDepth int
	cmd := &cobra.Command{
		Use:   "crawl URL",
		Short: "Submit a URL to the crawler",
		Long: `Queues URL on the crawler service. Priority and max depth must lie
between 1 and 10; the request is validated before it is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := a.Crawl.Submit(cmd.Context(), args[0], priority, maxDepth)
			if err != nil {
				return describeError(err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVar(&priority, "priority", crawl.DefaultPriority, "crawl priority (1-10)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", crawl.DefaultMaxDepth, "link depth to follow (1-10)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the crawler status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				doc, err := a.Crawl.Status(cmd.Context())
				if err != nil {
					return describeError(err)
				}
				return printJSON(cmd.OutOrStdout(), doc)
			},
		},
		&cobra.Command{
			Use:   "metrics",
			Short: "Show the crawler metrics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				doc, err := a.Crawl.Metrics(cmd.Context())
				if err != nil {
					return describeError(err)
				}
				return printJSON(cmd.OutOrStdout(), doc)
			},
		},
	)
	return cmd
}
