package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the host logger. Each package gets a named child through
// Component.
type Logger struct {
	*zap.Logger
}

// Config selects the level, encoding and destinations of host logs.
type Config struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// Development switches from JSON to colored console output and adds
	// stack traces to warnings.
	Development bool
	// OutputPaths are zap sink URLs or file paths. Empty means stderr;
	// stdout carries the response stream and must stay clean.
	OutputPaths []string
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.MessageKey = "message"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// A run is short; every module failure should reach the log.
		zapCfg.Sampling = nil
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.OutputPaths = []string{"stderr"}
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: logger}, nil
}

// Component returns a child logger tagged with a component name, e.g.
// "loader" or "compiler".
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name)
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}
