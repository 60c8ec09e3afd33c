package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coatworks/sprayshop/internal/observability"
	"github.com/coatworks/sprayshop/pkg/shopstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := shopstore.Open(ctx, shopstore.Config{Path: appConfig.Store.Path})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open store", err)
	}
	defer func() { _ = db.Close() }()

	if err := shopstore.Migrate(ctx, db); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Migration failed", err)
	}

	observability.CLILogger.Info("Migrations applied",
		zap.String("store", appConfig.Store.Path),
		zap.Int("schema_version", shopstore.SchemaVersion))
	return nil
}
