package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger handles application logging
type Logger struct {
	fileLogger     *logrus.Logger
	consoleLogger  *logrus.Logger
	file           *os.File
	fileEnabled    bool
	consoleEnabled bool
}

// ConsoleConfig contains console output settings
type ConsoleConfig struct {
	Enabled bool
	Level   string
	Format  string
}

// FileConfig contains file output settings
type FileConfig struct {
	Enabled bool
	Level   string
	Format  string
	Path    string
}

// Config contains logger configuration
type Config struct {
	Console ConsoleConfig
	File    FileConfig
}

// NewLogger creates a new application logger with multiple outputs
func NewLogger(cfg *Config) (*Logger, error) {
	l := &Logger{}

	if cfg.Console.Enabled {
		consoleLog := logrus.New()
		consoleLog.SetLevel(parseLevel(cfg.Console.Level))
		consoleLog.SetFormatter(makeFormatter(cfg.Console.Format, true))
		consoleLog.SetOutput(os.Stdout)

		l.consoleLogger = consoleLog
		l.consoleEnabled = true
	}

	if cfg.File.Enabled && cfg.File.Path != "" {
		f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}

		fileLog := logrus.New()
		fileLog.SetLevel(parseLevel(cfg.File.Level))
		fileLog.SetFormatter(makeFormatter(cfg.File.Format, false))
		fileLog.SetOutput(f)

		l.file = f
		l.fileLogger = fileLog
		l.fileEnabled = true
	}

	// Ensure at least one output is configured
	if !l.fileEnabled && !l.consoleEnabled {
		consoleLog := logrus.New()
		consoleLog.SetLevel(logrus.InfoLevel)
		consoleLog.SetFormatter(makeFormatter("text", true))
		consoleLog.SetOutput(os.Stdout)
		l.consoleLogger = consoleLog
		l.consoleEnabled = true
	}

	return l, nil
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func makeFormatter(format string, colors bool) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     colors,
	}
}

// Log dispatches a message at the named level. Unknown levels fall
// back to debug.
func (l *Logger) Log(level string, msg string, fields ...interface{}) {
	switch level {
	case "DEBUG":
		l.Debug(msg, fields...)
	case "INFO":
		l.Info(msg, fields...)
	case "WARNING":
		l.Warn(msg, fields...)
	case "ERROR", "CRITICAL":
		l.Error(msg, fields...)
	default:
		l.Debug(msg, fields...)
	}
}

// Info logs an info message to both outputs
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.dispatch(logrus.InfoLevel, msg, fields...)
}

// Warn logs a warning message to both outputs
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.dispatch(logrus.WarnLevel, msg, fields...)
}

// Error logs an error message to both outputs
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.dispatch(logrus.ErrorLevel, msg, fields...)
}

// Debug logs a debug message to both outputs
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.dispatch(logrus.DebugLevel, msg, fields...)
}

func (l *Logger) dispatch(level logrus.Level, msg string, fields ...interface{}) {
	logFields := l.parseFields(fields...)

	if l.fileEnabled {
		if len(logFields) > 0 {
			l.fileLogger.WithFields(logFields).Log(level, msg)
		} else {
			l.fileLogger.Log(level, msg)
		}
	}

	if l.consoleEnabled {
		if len(logFields) > 0 {
			l.consoleLogger.WithFields(logFields).Log(level, msg)
		} else {
			l.consoleLogger.Log(level, msg)
		}
	}
}

// Close releases the file output, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// parseFields converts variadic arguments to logrus.Fields
func (l *Logger) parseFields(fields ...interface{}) logrus.Fields {
	result := make(logrus.Fields)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result[key] = fields[i+1]
		}
	}
	return result
}
