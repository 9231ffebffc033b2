// Package logging is the small structured-logging facade shared by the
// decode, fetch, and detection packages. Library code logs through the
// package-level functions or a WithFields child; the binary decides the
// backend once at startup via SetGlobalLogger.
package logging

// Fields holds structured key/value pairs attached to a log line
type Fields map[string]any

// Logger is the interface the rest of the module logs against
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)

	// WithFields returns a child logger with preset fields
	WithFields(fields Fields) Logger
}

var globalLogger Logger = NewDefaultLogger()

// SetGlobalLogger replaces the process-wide logger. Passing nil silences
// logging entirely.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger = &NoOpLogger{}
		return
	}
	globalLogger = logger
}

// SetVerbose toggles the default logger between debug and info level. It
// has no effect on custom backends installed with SetGlobalLogger.
func SetVerbose(verbose bool) {
	d, ok := globalLogger.(*DefaultLogger)
	if !ok {
		return
	}
	if verbose {
		d.SetLevel(DebugLevel)
	} else {
		d.SetLevel(InfoLevel)
	}
}

// Debug logs through the global logger
func Debug(msg string, fields ...Fields) {
	globalLogger.Debug(msg, fields...)
}

// Info logs through the global logger
func Info(msg string, fields ...Fields) {
	globalLogger.Info(msg, fields...)
}

// Warn logs through the global logger
func Warn(msg string, fields ...Fields) {
	globalLogger.Warn(msg, fields...)
}

// Error logs through the global logger
func Error(err error, msg string, fields ...Fields) {
	globalLogger.Error(err, msg, fields...)
}

// WithFields returns a child of the global logger with preset fields
func WithFields(fields Fields) Logger {
	return globalLogger.WithFields(fields)
}
