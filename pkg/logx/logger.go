// Package logx provides the small leveled, structured logging interface
// used throughout this repository, in the style of the state-machine
// package it descends from: callers pass a level, a message, and an even
// number of key/value pairs rather than building format strings by hand.
package logx

import "go.uber.org/zap"

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is implemented by anything EPI can log through. Production code
// wires in NewZapLogger; tests typically use NewNopLogger or NewTestLogger.
type Logger interface {
	Log(level Level, msg string, keysAndValues ...interface{})
}

// zapLogger adapts a *zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps z as a Logger.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{sugar: z.Sugar()}
}

// NewProductionLogger builds a zap production logger (JSON, Info level and
// above) wrapped as a Logger, suitable for cmd/epictl's default.
func NewProductionLogger() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(z), nil
}

func (l *zapLogger) Log(level Level, msg string, keysAndValues ...interface{}) {
	switch level {
	case LevelDebug:
		l.sugar.Debugw(msg, keysAndValues...)
	case LevelInfo:
		l.sugar.Infow(msg, keysAndValues...)
	case LevelWarn:
		l.sugar.Warnw(msg, keysAndValues...)
	case LevelError:
		l.sugar.Errorw(msg, keysAndValues...)
	default:
		l.sugar.Infow(msg, keysAndValues...)
	}
}

// nopLogger discards every log line. Used by tests that don't care about
// log output but still need a non-nil Logger.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Log(Level, string, ...interface{}) {}

// recordingLogger captures log lines in memory, for tests that want to
// assert on log content.
type recordingLogger struct {
	entries *[]Entry
}

// Entry is one captured log line.
type Entry struct {
	Level         Level
	Msg           string
	KeysAndValues []interface{}
}

// NewTestLogger returns a Logger that appends every call to *entries.
func NewTestLogger(entries *[]Entry) Logger {
	return &recordingLogger{entries: entries}
}

func (l *recordingLogger) Log(level Level, msg string, keysAndValues ...interface{}) {
	*l.entries = append(*l.entries, Entry{Level: level, Msg: msg, KeysAndValues: keysAndValues})
}
