// Package cmd wires the sprayshop CLI: serve, migrate, seed, version.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coatworks/sprayshop/internal/config"
	"github.com/coatworks/sprayshop/internal/observability"
	"github.com/coatworks/sprayshop/internal/server/handlers"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile   string
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sprayshop",
	Short: "Powder-coating shop spray-batch time tracking",
	Long: `sprayshop tracks spray-booth work time per job inside powder batches
and reconciles timers against measured powder consumption at batch close.`,
	PersistentPreRunE: initApp,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
}

func initApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context(), cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	appConfig = cfg

	if err := observability.Init(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	handlers.InitHealthManager(versionInfo.Version)
	return nil
}

// Execute runs the CLI and flushes the loggers on the way out.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
