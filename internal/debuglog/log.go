package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level logging facade backed by zap. Components that want structured
// fields grab a SugaredLogger via Sugar(); everything else uses the printf
// helpers. Before Setup is called all output is dropped.

var (
	base   *zap.Logger        = zap.NewNop()
	logger *zap.SugaredLogger = zap.NewNop().Sugar()
)

// Setup configures logging with the given level ("debug", "info", "warn",
// "error" or "off") and optional file path. An empty path logs to stderr.
func Setup(level, filePath string) error {
	if strings.EqualFold(strings.TrimSpace(level), "off") {
		base = zap.NewNop()
		logger = base.Sugar()
		return nil
	}

	parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		cfg.OutputPaths = []string{filePath}
		cfg.ErrorOutputPaths = []string{filePath}
	}

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	base = built
	logger = built.Sugar()
	return nil
}

// Sugar returns the current logger for components that hold their own.
func Sugar() *zap.SugaredLogger {
	return logger
}

// Close flushes buffered log output.
func Close() error {
	return base.Sync()
}

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }
