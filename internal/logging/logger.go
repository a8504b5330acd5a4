package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "INCIDENTDESK_LOG_LEVEL"

// Initialize creates a new logger with the specified level writing to stdout.
// If level is empty, it checks INCIDENTDESK_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return initialize(level, "stdout")
}

// InitializeToFile is like Initialize but appends to the file at path.
// Use this whenever a TUI is running on the same terminal.
func InitializeToFile(level, path string) error {
	if path == "" {
		return Initialize(level)
	}
	return initialize(level, path)
}

// EffectiveLevel returns level, or INCIDENTDESK_LOG_LEVEL when level is
// empty. An empty result means logging stays silent.
func EffectiveLevel(level string) string {
	if level == "" {
		return os.Getenv(LogLevelEnvVar)
	}
	return level
}

func initialize(level, output string) error {
	level = EffectiveLevel(level)
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	if output == "stdout" {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		return zapcore.InfoLevel
	}
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// SetLogger replaces the global logger. Tests use this with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogTransition logs a modal router state change.
// Empty names are rendered as "-" so closed slots stay visible in console output.
func LogTransition(fromCurrent, fromMounted, toCurrent, toMounted string) {
	Debug("Modal transition",
		zap.String("current_from", orDash(fromCurrent)),
		zap.String("current_to", orDash(toCurrent)),
		zap.String("mounted_from", orDash(fromMounted)),
		zap.String("mounted_to", orDash(toMounted)),
	)
}

// LogHashChange logs a fragment change together with what caused it
func LogHashChange(previous, next, source string) {
	Debug("Hash changed",
		zap.String("from", previous),
		zap.String("to", next),
		zap.String("source", source),
	)
}

// LogSubmission logs the outcome of a wizard step submission
func LogSubmission(flow string, step int, validateOnly bool, outcome string) {
	Info("Step submitted",
		zap.String("flow", flow),
		zap.Int("step", step),
		zap.Bool("validate_only", validateOnly),
		zap.String("outcome", outcome),
	)
}

// LogConnection logs a bridge connection event
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
