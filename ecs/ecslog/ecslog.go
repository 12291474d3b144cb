// Package ecslog is a thin leveled wrapper over the standard library
// log package, gated by a caller-supplied enabled flag. It exists so
// the engine's development-mode diagnostics (the resolved scheduler
// order) read like structured log lines without pulling in a
// dedicated logging framework for a library-sized core.
package ecslog

import "log"

// Logger gates Debug/Info/Warn output on Enabled.
type Logger struct {
	Enabled bool
	prefix  string
}

// New returns a Logger with the given prefix, initially enabled per
// the enabled argument.
func New(prefix string, enabled bool) *Logger {
	return &Logger{Enabled: enabled, prefix: prefix}
}

func (l *Logger) Debug(format string, args ...any) { l.emit("DEBUG", format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.emit("INFO", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.emit("WARN", format, args...) }

func (l *Logger) emit(level, format string, args ...any) {
	if l == nil || !l.Enabled {
		return
	}
	log.Printf("["+l.prefix+" "+level+"] "+format, args...)
}
