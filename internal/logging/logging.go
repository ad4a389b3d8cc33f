// Package logging builds the process zap logger
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console

	// File, when set, additionally writes JSON logs to a rotating file
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Handle owns the logger, its runtime-adjustable level and the optional log file
type Handle struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel

	file *lumberjack.Logger
}

// ParseLevel maps a level name to a zapcore level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds the logger described by opts
func New(opts Options) (*Handle, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	var config zap.Config
	if opts.Format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = level

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	h := &Handle{Logger: logger, Level: level}

	if opts.File != "" {
		h.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			LocalTime:  true,
			Compress:   opts.Compress,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(h.file),
			level,
		)
		h.Logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	return h, nil
}

// SetLevel changes the level of the running logger
func (h *Handle) SetLevel(level string) {
	h.Level.SetLevel(ParseLevel(level))
}

// Close flushes the logger and closes the log file, if any
func (h *Handle) Close() error {
	_ = h.Logger.Sync()
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}
