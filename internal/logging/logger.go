package logging

import (
	"log"
	"strings"
)

// Logger is injected into the engine, the loop and the stream hub.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string log level (case-insensitive). Unknown values map to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// StdLogger writes leveled lines through the standard log package.
type StdLogger struct {
	level  Level
	logger *log.Logger
}

// NewStdLogger creates a logger with the specified log level writing to log's default output.
func NewStdLogger(level string) *StdLogger {
	return &StdLogger{
		level:  ParseLevel(level),
		logger: log.Default(),
	}
}

// WithOutput returns a copy of the logger that writes to l.
func (s *StdLogger) WithOutput(l *log.Logger) *StdLogger {
	return &StdLogger{level: s.level, logger: l}
}

// Level returns the configured threshold.
func (s *StdLogger) Level() Level {
	return s.level
}

func (s *StdLogger) shouldLog(level Level) bool {
	return level >= s.level
}

func (s *StdLogger) Debugf(format string, v ...any) {
	if s.shouldLog(LevelDebug) {
		s.logger.Printf("[DEBUG] "+format, v...)
	}
}

func (s *StdLogger) Infof(format string, v ...any) {
	if s.shouldLog(LevelInfo) {
		s.logger.Printf("[INFO] "+format, v...)
	}
}

func (s *StdLogger) Warnf(format string, v ...any) {
	if s.shouldLog(LevelWarn) {
		s.logger.Printf("[WARN] "+format, v...)
	}
}

func (s *StdLogger) Errorf(format string, v ...any) {
	if s.shouldLog(LevelError) {
		s.logger.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs an error message and exits
func (s *StdLogger) Fatalf(format string, v ...any) {
	s.logger.Fatalf("[FATAL] "+format, v...)
}

// NoOpLogger is a logger that does nothing (useful for testing or when logging is disabled)
type NoOpLogger struct{}

func (n *NoOpLogger) Debugf(format string, v ...any) {}
func (n *NoOpLogger) Infof(format string, v ...any)  {}
func (n *NoOpLogger) Warnf(format string, v ...any)  {}
func (n *NoOpLogger) Errorf(format string, v ...any) {}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}
