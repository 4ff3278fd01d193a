/*
logging.go - zap logger factory

PURPOSE:
  Builds the process logger from LogConfig. "json" uses zap's production
  encoder for log shipping; "console" uses the development encoder with
  colored levels for local runs.

  Engines take a *zap.Logger field defaulting to zap.NewNop(), so tests stay
  quiet unless they opt in.

SEE ALSO:
  - config/config.go: LogConfig
  - api/middleware.go: Request logging
*/
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/cost-ledger/config"
)

// New returns a logger for cfg.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		zapCfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
