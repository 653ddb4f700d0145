// Package logger builds the process logger. The logger is created once by
// the entry point and handed to every component that logs.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hoanghonghuy/commita/internal/config"
)

// DefaultConfig logs human-readable lines to stderr at warn level, so
// normal runs only show problems.
func DefaultConfig() zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	return cfg
}

// New returns a logger at debug level when verbose is set. COMMITA_LOG_LEVEL
// overrides both.
func New(verbose bool) *zap.Logger {
	cfg := DefaultConfig()
	if verbose {
		cfg.Level.SetLevel(zap.DebugLevel)
	}
	if lvl := strings.TrimSpace(os.Getenv(config.EnvLogLevel)); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level.SetLevel(parsed)
		}
	}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
