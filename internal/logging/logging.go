// Package logging builds the zap loggers used by the command-line tools.
// Library packages accept a *zap.Logger and never construct their own.
package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Standard field names for structured log output
const (
	FieldTimestamp  = "timestamp"
	FieldLevel      = "level"
	FieldLogger     = "logger"
	FieldCaller     = "caller"
	FieldMessage    = "message"
	FieldStacktrace = "stacktrace"
)

// FileConfig controls rotation of the optional log file
type FileConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig returns rotation at 100MB, 5 backups kept for 30 days
func DefaultFileConfig() FileConfig {
	return FileConfig{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30, Compress: true}
}

// NewEncoderConfig returns the JSON encoder config used for log files
func NewEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        FieldTimestamp,
		LevelKey:       FieldLevel,
		NameKey:        FieldLogger,
		CallerKey:      FieldCaller,
		MessageKey:     FieldMessage,
		StacktraceKey:  FieldStacktrace,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// NewConsoleEncoderConfig returns a human-readable config for stderr
func NewConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := NewEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = shortTimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

func shortTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05.000"))
}

// New returns a logger writing to stderr and, when logFile is set, to a
// rotating JSON file as well. verbose lowers the level to debug.
func New(verbose bool, logFile string) *zap.Logger {
	return NewWithFileConfig(verbose, logFile, DefaultFileConfig())
}

// NewWithFileConfig is New with explicit rotation settings
func NewWithFileConfig(verbose bool, logFile string, fc FileConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(NewConsoleEncoderConfig()), zapcore.Lock(os.Stderr), level),
	}
	if logFile != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    fc.MaxSizeMB,
			MaxBackups: fc.MaxBackups,
			MaxAge:     fc.MaxAgeDays,
			Compress:   fc.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), writer, level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
