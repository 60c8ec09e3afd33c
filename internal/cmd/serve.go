package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coatworks/sprayshop/internal/observability"
	"github.com/coatworks/sprayshop/internal/server"
	"github.com/coatworks/sprayshop/pkg/shopstore"
	"github.com/coatworks/sprayshop/pkg/spraytime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Open the shop database, apply pending migrations, and serve the
batch, powder, and job routes until interrupted.

Example:
  sprayshop serve
  sprayshop serve --config sprayshop.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := shopstore.Open(ctx, shopstore.Config{Path: appConfig.Store.Path})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open store", err)
	}
	defer func() { _ = db.Close() }()

	if err := shopstore.Migrate(ctx, db); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to migrate store", err)
	}

	engine := spraytime.New(db, observability.ServerLogger)
	srv := server.New(appConfig.Server.Host, appConfig.Server.Port,
		server.WithEngine(engine, db),
		server.WithRateLimit(appConfig.Server.RateLimitRPS, appConfig.Server.RateLimitBurst),
		server.WithTimeouts(appConfig.Server.ReadTimeout, appConfig.Server.WriteTimeout, appConfig.Server.IdleTimeout),
	)

	observability.CLILogger.Info("Starting server",
		zap.String("host", appConfig.Server.Host),
		zap.Int("port", appConfig.Server.Port),
		zap.String("store", appConfig.Store.Path))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background())
	}()

	select {
	case <-ctx.Done():
		observability.CLILogger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitError(foundry.ExitSignalInt, "Shutdown failed", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	}
}
