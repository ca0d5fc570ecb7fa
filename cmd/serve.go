package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON console server",
		Long: `Serves the console operations over HTTP under /v1, plus /healthz,
/readyz and /metrics. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if port == 0 {
				port = a.Config.Server.Port
			}
			consoleServer, err := api.NewServer(api.Deps{
				Search:         a.Search,
				Crawl:          a.Crawl,
				Admin:          a.Admin,
				Session:        a.Session,
				Health:         a.Health,
				Discovery:      a.Discovery,
				Logger:         a.Logger.Named("api"),
				RequestTimeout: a.Config.RequestTimeout(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           consoleServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.Logger.Info("console server started", zap.Int("port", port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("console server: %w", err)
				}
			}
			a.Logger.Info("shutdown initiated")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error("server shutdown error", zap.Error(err))
			}
			a.Logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	return cmd
}
