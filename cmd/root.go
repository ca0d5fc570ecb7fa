// Package cmd defines and implements the CLI commands for the searchconsole executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/app"
	"github.com/JakeFAU/searchconsole/internal/config"
	"github.com/JakeFAU/searchconsole/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, app.Options{Logger: logger})
}

type rootOptions struct {
	configFile string
	envFile    string
	verbose    bool
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "searchconsole",
		Short: "Operator console for the search engine gateway.",
		Long: `searchconsole talks to the search engine's API gateway: it searches,
submits crawls, watches service health and discovery, and drives the
crawler and indexer admin endpoints. It can also serve the same operations
as a JSON console server.`,
		SilenceUsage: true,

		// Builds and injects the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, opts.verbose || cmd.Name() == "serve")
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize console services: %w", err)
			}
			if err := appInstance.RestoreSession(cmd.Context()); err != nil {
				logger.Warn("stored session not restored", zap.Error(err))
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				_ = appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newSuggestCmd(),
		newFeedbackCmd(),
		newReplCmd(),
		newCrawlCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newHealthCmd(),
		newDiscoveryCmd(),
		newAdminCmd(),
	)
	return cmd
}

// newLogger keeps one-shot commands quiet unless asked.
func newLogger(cfg config.Config, enabled bool) (*zap.Logger, error) {
	if !enabled {
		return zap.NewNop(), nil
	}
	return logging.New(cfg.Logging.Development)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("console services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
