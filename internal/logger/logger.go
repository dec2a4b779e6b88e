// Package logger builds the slog loggers used across noqturne. Console output goes
// to stdout in text or JSON form; errors are additionally appended to a persistent
// JSON-lines diagnostic log.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OutputFormat selects the console handler.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ErrorLogName is the file name of the persistent diagnostic log.
const ErrorLogName = "errorLog.log"

var (
	// testOutput is used to capture log output during tests
	testOutput   io.Writer
	testOutputMu sync.Mutex
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

// SetTestOutput redirects console output of loggers created afterwards.
func SetTestOutput(w io.Writer) {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = w
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = nil
}

func getOutput(fallback io.Writer) io.Writer {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	if testOutput != nil {
		return testOutput
	}
	if fallback != nil {
		return fallback
	}
	return os.Stdout
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures New.
type Options struct {
	Level  string
	Format OutputFormat
	// Output receives console logs. Defaults to stdout.
	Output io.Writer
	// ErrorLogPath, when set, receives every record at error level as JSON lines.
	ErrorLogPath string
}

// Logger is a slog.Logger that owns the diagnostic log file.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a Logger. The caller must Close it to flush the diagnostic log.
func New(opts Options) (*Logger, error) {
	level := ParseLevel(opts.Level)
	out := getOutput(opts.Output)

	var console slog.Handler
	if opts.Format == FormatJSON {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		console = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	if opts.ErrorLogPath == "" {
		return &Logger{Logger: slog.New(console)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.ErrorLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.ErrorLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log %s: %w", opts.ErrorLogPath, err)
	}
	diag := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelError, AddSource: true})
	return &Logger{Logger: slog.New(NewFanout(console, diag)), closer: f}, nil
}

// Close releases the diagnostic log file.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// NewTest returns a debug-level logger writing to the test output, or discarding
// everything when none is set.
func NewTest() *slog.Logger {
	testOutputMu.Lock()
	w := testOutput
	testOutputMu.Unlock()
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Attrs flattens field maps into slog key-value pairs.
func Attrs(fields ...Fields) []any {
	result := []any{}
	for _, field := range fields {
		for k, v := range field {
			result = append(result, k, v)
		}
	}
	return result
}

// Success logs a success message as info with success indicator.
func Success(l *slog.Logger, msg string, fields ...Fields) {
	attrs := Attrs(fields...)
	attrs = append(attrs, "status", "success")
	l.Info(msg, attrs...)
}

// Fanout dispatches every record to all handlers that accept its level.
type Fanout struct {
	handlers []slog.Handler
}

// NewFanout combines handlers.
func NewFanout(handlers ...slog.Handler) *Fanout {
	return &Fanout{handlers: handlers}
}

// Enabled implements slog.Handler.
func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler.
func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: hs}
}

// WithGroup implements slog.Handler.
func (f *Fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: hs}
}
