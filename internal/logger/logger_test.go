package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level string, format OutputFormat, fn func(l *slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	l, err := New(Options{Level: level, Format: format})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	fn(l.Logger)
	return buf.String()
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func(l *slog.Logger)
		contains []string
		excludes []string
	}{
		{
			name:     "info log",
			level:    "info",
			logFn:    func(l *slog.Logger) { l.Info("provisioning yt-dlp") },
			contains: []string{"provisioning yt-dlp", "level=INFO"},
		},
		{
			name:     "debug log with debug level",
			level:    "debug",
			logFn:    func(l *slog.Logger) { l.Debug("chunk written") },
			contains: []string{"chunk written", "level=DEBUG"},
		},
		{
			name:     "debug log with info level",
			level:    "info",
			logFn:    func(l *slog.Logger) { l.Debug("chunk written") },
			excludes: []string{"chunk written"},
		},
		{
			name:     "warn log with fields",
			level:    "warn",
			logFn:    func(l *slog.Logger) { l.Warn("self-update failed", Attrs(Fields{"dependency": "yt-dlp"})...) },
			contains: []string{"self-update failed", "level=WARN", "dependency=yt-dlp"},
		},
		{
			name:     "success log",
			level:    "info",
			logFn:    func(l *slog.Logger) { Success(l, "tagged", Fields{"count": 3}) },
			contains: []string{"tagged", "status=success", "count=3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, tt.level, FormatText, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, notWant := range tt.excludes {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	out := captureOutput(t, "info", FormatJSON, func(l *slog.Logger) {
		l.Info("test message", "bytes", 42)
	})
	assert.Contains(t, out, `"msg":"test message"`)
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, `"bytes":42`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestErrorLogReceivesOnlyErrors(t *testing.T) {
	console := &bytes.Buffer{}
	path := filepath.Join(t.TempDir(), "data", ErrorLogName)

	l, err := New(Options{Level: "debug", Output: console, ErrorLogPath: path})
	require.NoError(t, err)
	l.With("component", "deps").Info("checking ffmpeg")
	l.With("component", "deps").Error("install failed", "error", errors.New("boom"))
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "checking ffmpeg")
	assert.Contains(t, console.String(), "install failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "install failed", rec["msg"])
	assert.Equal(t, "deps", rec["component"])
	assert.Equal(t, "boom", rec["error"])
}

func TestNewTest(t *testing.T) {
	assert.NotPanics(t, func() { NewTest().Info("discarded") })

	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()
	NewTest().Debug("captured")
	assert.Contains(t, buf.String(), "captured")
}
