// ABOUTME: Leveled printf-style logging backed by a zap SugaredLogger on stderr
// ABOUTME: Global level via SetLevel; Named returns component loggers sharing the level

package log

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level constants matching zap levels.
const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

var (
	level = zap.NewAtomicLevelAt(LevelInfo)
	base  atomic.Pointer[output]
)

// output is one SetOutput generation: the root logger plus the named
// loggers derived from it. Replacing it drops every cached child.
type output struct {
	root  *zap.SugaredLogger
	named sync.Map // string -> *zap.SugaredLogger
}

func (o *output) child(name string) *zap.SugaredLogger {
	if s, ok := o.named.Load(name); ok {
		return s.(*zap.SugaredLogger)
	}
	s, _ := o.named.LoadOrStore(name, o.root.Named(name))
	return s.(*zap.SugaredLogger)
}

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects all loggers to w. Stderr keeps log lines out of the TUI.
func SetOutput(w io.Writer) {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	base.Store(&output{root: zap.New(core).Sugar()})
}

// SetLevel sets the global log level.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// GetLevel returns the current log level.
func GetLevel() zapcore.Level {
	return level.Level()
}

// Debug logs a debug message if the level allows it.
func Debug(format string, args ...any) { base.Load().root.Debugf(format, args...) }

// Info logs an info message if the level allows it.
func Info(format string, args ...any) { base.Load().root.Infof(format, args...) }

// Warn logs a warning message if the level allows it.
func Warn(format string, args ...any) { base.Load().root.Warnf(format, args...) }

// Error logs an error message (always emitted).
func Error(format string, args ...any) { base.Load().root.Errorf(format, args...) }

// Sync flushes buffered output.
func Sync() error { return base.Load().root.Sync() }

// Logger is a component-scoped logger. The zero value logs unnamed.
type Logger struct {
	name string
}

// Named returns a Logger whose lines carry the given component name.
func Named(name string) Logger {
	return Logger{name: name}
}

func (l Logger) sugar() *zap.SugaredLogger {
	o := base.Load()
	if l.name == "" {
		return o.root
	}
	return o.child(l.name)
}

// Debug logs at debug level.
func (l Logger) Debug(format string, args ...any) { l.sugar().Debugf(format, args...) }

// Info logs at info level.
func (l Logger) Info(format string, args ...any) { l.sugar().Infof(format, args...) }

// Warn logs at warn level.
func (l Logger) Warn(format string, args ...any) { l.sugar().Warnf(format, args...) }

// Error logs at error level.
func (l Logger) Error(format string, args ...any) { l.sugar().Errorf(format, args...) }
