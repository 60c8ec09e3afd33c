// Package observability owns the process-wide zap loggers.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is used by command entry points; ServerLogger by the HTTP
// surface and engine. Both default to nop so packages can log before Init.
var (
	CLILogger    = zap.NewNop()
	ServerLogger = zap.NewNop()
)

// Init builds the process loggers. Profile "CONSOLE" uses a development
// encoder; anything else emits structured JSON.
func Init(level, profile string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	if strings.EqualFold(profile, "CONSOLE") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	CLILogger = logger.Named("cli")
	ServerLogger = logger.Named("server")
	return nil
}

// Sync flushes buffered log entries. Errors are ignored; stderr syncs fail
// on some platforms.
func Sync() {
	_ = CLILogger.Sync()
	_ = ServerLogger.Sync()
}
