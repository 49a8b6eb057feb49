// Package logging wraps zap.Logger with the structured, leveled logging
// convention used across every core component, generalizing the teacher's
// ad-hoc log.Printf/fmt.Fprintf(os.Stderr, ...) calls (database.go, main.go).
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a type alias for zap.Field so callers don't need to import zap directly.
type Field = zap.Field

// Common field constructors, re-exported for call-site convenience.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Any      = zap.Any
	Err      = zap.Error
	Duration = zap.Duration
)

// Logger wraps a *zap.Logger, scoped to a single component name.
type Logger struct {
	zap *zap.Logger
}

// Config holds logger configuration.
type Config struct {
	LogDir         string
	FileLevel      zapcore.Level
	ConsoleLevel   zapcore.Level
	ConsoleEnabled bool
}

// DefaultConfig returns the default logger configuration: info to file,
// warn to console, both enabled.
func DefaultConfig() Config {
	return Config{
		LogDir:         filepath.Join(os.TempDir(), "renamecore", "logs"),
		FileLevel:      zapcore.InfoLevel,
		ConsoleLevel:   zapcore.WarnLevel,
		ConsoleEnabled: true,
	}
}

// New creates a root logger writing JSON to cfg.LogDir/core.log and,
// when enabled, a colored human-readable stream to stderr.
func New(cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, err
	}

	fileEncCfg := zap.NewProductionEncoderConfig()
	fileEncCfg.TimeKey = "ts"
	fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEnc := zapcore.NewJSONEncoder(fileEncCfg)

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "core.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fileWriter := zapcore.AddSync(logFile)

	var core zapcore.Core
	if cfg.ConsoleEnabled {
		consoleEncCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc := zapcore.NewConsoleEncoder(consoleEncCfg)
		core = zapcore.NewTee(
			zapcore.NewCore(fileEnc, fileWriter, cfg.FileLevel),
			zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stderr), cfg.ConsoleLevel),
		)
	} else {
		core = zapcore.NewCore(fileEnc, fileWriter, cfg.FileLevel)
	}

	return &Logger{zap: zap.New(core, zap.AddCaller())}, nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *Logger { return &Logger{zap: zap.NewNop()} }

// Named returns a child logger scoped to the given component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zap: l.zap.Named(component)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.zap.Sync() }
