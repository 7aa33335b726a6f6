package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level names accepted by NewLogger and SetLevel, case-insensitively.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the file NewLogger appends to inside its directory.
const LogFileName = "adapter.log"

var levels = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// sink is shared by a logger and every child derived from it.
type sink struct {
	level *slog.LevelVar

	mu   sync.Mutex
	file *os.File
}

// Logger is a slog.Logger with a runtime-adjustable level and an optional
// owned log file. Children from With, WithDriver and WithSignal share the
// parent's level and file.
type Logger struct {
	sl   *slog.Logger
	sink *sink
}

// NewLogger appends JSON lines to dir/adapter.log, creating dir if needed.
// An empty dir logs to stderr. Unknown levels fall back to INFO.
func NewLogger(dir string, level string) (*Logger, error) {
	if dir == "" {
		return NewWriterLogger(os.Stderr, level), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := NewWriterLogger(f, level)
	l.sink.file = f
	return l, nil
}

// NewWriterLogger logs JSON lines to w. Closing it never closes w.
func NewWriterLogger(w io.Writer, level string) *Logger {
	s := &sink{level: new(slog.LevelVar)}
	s.level.Set(parseLevel(level))
	return &Logger{
		sl:   slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: s.level})),
		sink: s,
	}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{
		sl:   slog.New(slog.DiscardHandler),
		sink: &sink{level: new(slog.LevelVar)},
	}
}

func parseLevel(level string) slog.Level {
	if lv, ok := levels[strings.ToUpper(level)]; ok {
		return lv
	}
	return slog.LevelInfo
}

// SetLevel changes the minimum level of this logger and all its relatives.
func (l *Logger) SetLevel(level string) {
	l.sink.level.Set(parseLevel(level))
}

// Level returns the current minimum level name.
func (l *Logger) Level() string {
	cur := l.sink.level.Level()
	for name, lv := range levels {
		if lv == cur {
			return name
		}
	}
	return LevelInfo
}

func (l *Logger) WithDriver(driver string) *Logger { return l.With("driver", driver) }
func (l *Logger) WithSignal(signal string) *Logger { return l.With("signal", signal) }

// With returns a child carrying the given key-value pairs on every record.
// Pairs whose key is not a string are dropped.
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{sl: l.sl.With(attrs...), sink: l.sink}
}

func (l *Logger) Debug(msg string, args ...any) { l.sl.Log(context.Background(), slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sl.Log(context.Background(), slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sl.Log(context.Background(), slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sl.Log(context.Background(), slog.LevelError, msg, args...) }

// Close syncs and closes the log file opened by NewLogger. It is a no-op
// for writer loggers and safe to call repeatedly from any relative.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	f := l.sink.file
	if f == nil {
		return nil
	}
	l.sink.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return f.Close()
}
