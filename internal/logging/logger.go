// Package logging wraps zerolog with the key-value field API used across the
// fragment storage core.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with convenience methods.
type Logger struct {
	zl     zerolog.Logger
	fields map[string]interface{}
}

var global *Logger

func init() {
	global = NewDevelopment()
}

// NewProduction creates a production logger with JSON output.
func NewProduction() *Logger {
	zl := zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
	return &Logger{zl: zl, fields: make(map[string]interface{})}
}

// NewDevelopment creates a development logger with pretty console output.
func NewDevelopment() *Logger {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zl := zerolog.New(output).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
	return &Logger{zl: zl, fields: make(map[string]interface{})}
}

// NewWithWriter creates a logger with a custom writer.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &Logger{zl: zl, fields: make(map[string]interface{})}
}

// Nop returns a logger that discards everything, for tests that don't want
// console noise.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), fields: make(map[string]interface{})}
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) { global = l }

// Global returns the global logger instance.
func Global() *Logger { return global }

func (l *Logger) applyStoredFields(e *zerolog.Event) {
	for k, v := range l.fields {
		e.Interface(k, v)
	}
}

func (l *Logger) emit(e *zerolog.Event, msg string, fields []interface{}) {
	l.applyStoredFields(e)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			break
		}
		key, _ := fields[i].(string)
		val := fields[i+1]
		if key == "error" {
			if err, ok := val.(error); ok {
				e.Str("error", err.Error())
				continue
			}
		}
		e.Interface(key, val)
	}
	e.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.emit(l.zl.Error(), msg, fields) }

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields)/2)
	for k, v := range l.fields {
		newFields[k] = v
	}
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, _ := fields[i].(string)
			newFields[key] = fields[i+1]
		}
	}
	return &Logger{zl: l.zl, fields: newFields}
}

// String creates a string field.
func String(key, val string) (string, interface{}) { return key, val }

// Int creates an int field.
func Int(key string, val int) (string, interface{}) { return key, val }

// Int64 creates an int64 field.
func Int64(key string, val int64) (string, interface{}) { return key, val }

// Uint64 creates a uint64 field.
func Uint64(key string, val uint64) (string, interface{}) { return key, val }

// Bool creates a bool field.
func Bool(key string, val bool) (string, interface{}) { return key, val }

// Err creates an error field.
func Err(err error) (string, interface{}) { return "error", err }

// Any creates a field with any type.
func Any(key string, val interface{}) (string, interface{}) { return key, val }
