// Package logger is a thin zerolog wrapper with typed fields and an optional collector that ships
// deduplicated warnings and errors to a broker.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
	Service    string // attached to every line as "service"
}

type Logger struct {
	zl        zerolog.Logger
	collector *Collector
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	zctx := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(3)
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	return &Logger{zl: zctx.Logger()}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that stamps fields on every line and shares the collector.
func (l *Logger) With(fields ...Field) *Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		zctx = zctx.Interface(f.Key, f.Value)
	}
	return &Logger{zl: zctx.Logger(), collector: l.collector}
}

func (l *Logger) Debug(msg string, fields ...Field) { write(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	write(l.zl.Warn(), msg, fields)
	l.collect(zerolog.WarnLevel, msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	write(l.zl.Error(), msg, fields)
	l.collect(zerolog.ErrorLevel, msg, fields)
}

func write(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

func (l *Logger) collect(level zerolog.Level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}
	// 0 is this function, 1 is Warn/Error, 2 is the call site
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	}
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		values[f.Key] = f.Value
	}
	l.collector.Add(level.String(), msg, values, caller)
}

// AddCollector attaches a collector, closing the previous one.
func (l *Logger) AddCollector(cfg *CollectorConfig) {
	l.RemoveCollector()
	l.collector = NewCollector(cfg)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Field is one structured key/value. Value is the form the collector sees.
type Field struct {
	Key   string
	Value any
	apply func(*zerolog.Event)
}

func String(key, value string) Field {
	return Field{Key: key, Value: value, apply: func(e *zerolog.Event) { e.Str(key, value) }}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value, apply: func(e *zerolog.Event) { e.Int(key, value) }}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value, apply: func(e *zerolog.Event) { e.Int64(key, value) }}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value, apply: func(e *zerolog.Event) { e.Bool(key, value) }}
}

// Duration is logged in milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Error(err error) Field {
	var msg any
	if err != nil {
		msg = err.Error()
	}
	return Field{Key: "error", Value: msg, apply: func(e *zerolog.Event) { e.Err(err) }}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value, apply: func(e *zerolog.Event) { e.Interface(key, value) }}
}
