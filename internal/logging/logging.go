package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	levelMu     sync.RWMutex
	levelLoaded bool
	current     LogLevel
)

// ParseLevel converts a LOG_LEVEL value into a LogLevel. Unknown values
// fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// GetLevel returns the current log level, reading the environment on first use.
func GetLevel() LogLevel {
	levelMu.RLock()
	if levelLoaded {
		l := current
		levelMu.RUnlock()
		return l
	}
	levelMu.RUnlock()

	levelMu.Lock()
	defer levelMu.Unlock()
	if !levelLoaded {
		current = levelFromEnv()
		levelLoaded = true
	}
	return current
}

// SetLevel overrides the level taken from the environment.
func SetLevel(l LogLevel) {
	levelMu.Lock()
	current = l
	levelLoaded = true
	levelMu.Unlock()
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func logf(l LogLevel, tag, format string, args ...interface{}) {
	if GetLevel() <= l {
		log.Printf(tag+format, args...)
	}
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logf(LevelDebug, "[DEBUG] ", format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] ", format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logf(LevelWarn, "[WARN] ", format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logf(LevelError, "[ERROR] ", format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// JobLogger prefixes every line with a job id.
type JobLogger struct {
	prefix string
}

// Job returns a logger for the given job id.
func Job(id string) JobLogger {
	return JobLogger{prefix: "[job " + id + "] "}
}

// Debug logs a job-scoped debug message.
func (j JobLogger) Debug(format string, args ...interface{}) {
	logf(LevelDebug, "[DEBUG] "+j.prefix, format, args...)
}

// Info logs a job-scoped info message.
func (j JobLogger) Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] "+j.prefix, format, args...)
}

// Warn logs a job-scoped warning.
func (j JobLogger) Warn(format string, args ...interface{}) {
	logf(LevelWarn, "[WARN] "+j.prefix, format, args...)
}

// Error logs a job-scoped error.
func (j JobLogger) Error(format string, args ...interface{}) {
	logf(LevelError, "[ERROR] "+j.prefix, format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
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
		return fmt.Sprintf("unknown(%d)", l)
	}
}
