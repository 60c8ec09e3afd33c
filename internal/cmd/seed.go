package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coatworks/sprayshop/internal/observability"
	"github.com/coatworks/sprayshop/pkg/seed"
	"github.com/coatworks/sprayshop/pkg/shopstore"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load powders and jobs from a YAML fixture",
	Long: `Load powder inventory and job rows from a YAML fixture file.

Example:
  sprayshop seed --file fixtures/shop.yaml`,
	RunE: runSeed,
}

var seedFilePath string

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFilePath, "file", "f", "", "Path to seed fixture (required)")
	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fixture, err := seed.Load(seedFilePath)
	if err != nil {
		observability.CLILogger.Error("Failed to load seed fixture",
			zap.String("path", seedFilePath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid seed fixture", err)
	}

	db, err := shopstore.Open(ctx, shopstore.Config{Path: appConfig.Store.Path})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open store", err)
	}
	defer func() { _ = db.Close() }()

	if err := shopstore.Migrate(ctx, db); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to migrate store", err)
	}

	powders, jobs, err := seed.Apply(ctx, db, fixture, time.Now().UTC())
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Seed failed", err)
	}

	observability.CLILogger.Info("Seed applied",
		zap.String("path", seedFilePath),
		zap.Int("powders", powders),
		zap.Int("jobs", jobs))
	return nil
}
