// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describes the logging output.
type Config struct {
	// Level is the minimum severity written: "info", "warning", "error".
	Level string `yaml:"level"`
	// Format is "console" (the default) or "json".
	Format string `yaml:"format"`
	// Verbosity enables VEventf messages up to this level.
	Verbosity int32 `yaml:"verbosity"`
	// Redactable keeps redaction markers in the output.
	Redactable bool `yaml:"redactable"`
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info", "INFO":
		return zapcore.InfoLevel, nil
	case "warning", "WARNING", "warn":
		return zapcore.WarnLevel, nil
	case "error", "ERROR":
		return zapcore.ErrorLevel, nil
	}
	return 0, errors.Newf("unknown log level %q", s)
}

// Configure installs a logger writing to stderr according to cfg. The
// returned function flushes buffered output and should be called before the
// process exits.
func Configure(cfg Config) (flush func(), _ error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	var enc zapcore.Encoder
	switch cfg.Format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, errors.Newf("unknown log format %q", cfg.Format)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	install(l, cfg)
	return func() { _ = l.Sync() }, nil
}

// install replaces the active logger. The logger must be built to skip the
// two frames of this package's entry points.
func install(l *zap.Logger, cfg Config) {
	logging.verbosity.Store(cfg.Verbosity)
	logging.redactable.Store(cfg.Redactable)
	logging.logger.Store(l)
}

// TestingSetLogger installs l, which must already skip this package's two
// frames (see Configure), and returns a function restoring the previous
// logger.
func TestingSetLogger(l *zap.Logger, cfg Config) (restore func()) {
	prev := logging.logger.Load()
	prevV := logging.verbosity.Load()
	prevR := logging.redactable.Load()
	install(l, cfg)
	return func() {
		logging.verbosity.Store(prevV)
		logging.redactable.Store(prevR)
		logging.logger.Store(prev)
	}
}
