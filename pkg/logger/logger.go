// Package logger provides a process-wide structured logger used by every
// other package in this module.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// EnvReader abstracts environment lookups so Initialize can be tested
// without mutating the real process environment.
type EnvReader interface {
	Getenv(key string) string
}

type osEnvReader struct{}

func (osEnvReader) Getenv(key string) string { return os.Getenv(key) }

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newLogger(unstructuredLogs()))
}

func newLogger(unstructured bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if unstructured {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// unstructuredLogsWithEnv reports whether human-readable text logging should
// be used instead of JSON. Defaults to true, matching any value that isn't
// the literal string "false".
func unstructuredLogsWithEnv(env EnvReader) bool {
	return env.Getenv("UNSTRUCTURED_LOGS") != "false"
}

func unstructuredLogs() bool {
	return unstructuredLogsWithEnv(osEnvReader{})
}

// Initialize resets the singleton logger from the current environment.
func Initialize() {
	InitializeWithEnv(osEnvReader{})
}

// InitializeWithEnv resets the singleton logger using the given env reader.
func InitializeWithEnv(env EnvReader) {
	singleton.Store(newLogger(unstructuredLogsWithEnv(env)))
}

// Get returns the current process-wide logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// NewLogr adapts the singleton logger to a logr.Logger, for collaborators
// (such as an HTTP transport) that are wired for that interface.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(singleton.Load().Handler())
}

func Debug(msg string)  { Get().Log(context.Background(), slog.LevelDebug, msg) }
func Info(msg string)   { Get().Log(context.Background(), slog.LevelInfo, msg) }
func Warn(msg string)   { Get().Log(context.Background(), slog.LevelWarn, msg) }
func Error(msg string)  { Get().Log(context.Background(), slog.LevelError, msg) }
func DPanic(msg string) { Get().Log(context.Background(), slog.LevelError, msg) }
func Panic(msg string) {
	Get().Log(context.Background(), slog.LevelError, msg)
	panic(msg)
}

func Debugf(format string, args ...any) { Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }
func DPanicf(format string, args ...any) {
	DPanic(fmt.Sprintf(format, args...))
}
func Panicf(format string, args ...any) { Panic(fmt.Sprintf(format, args...)) }

func Debugw(msg string, kv ...any) { Get().Log(context.Background(), slog.LevelDebug, msg, kv...) }
func Infow(msg string, kv ...any)  { Get().Log(context.Background(), slog.LevelInfo, msg, kv...) }
func Warnw(msg string, kv ...any)  { Get().Log(context.Background(), slog.LevelWarn, msg, kv...) }
func Errorw(msg string, kv ...any) { Get().Log(context.Background(), slog.LevelError, msg, kv...) }
func DPanicw(msg string, kv ...any) {
	Get().Log(context.Background(), slog.LevelError, msg, kv...)
}
func Panicw(msg string, kv ...any) {
	Get().Log(context.Background(), slog.LevelError, msg, kv...)
	panic(msg)
}
