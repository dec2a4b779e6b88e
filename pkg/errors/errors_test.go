package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		msg      string
		expected string
	}{
		{name: "nil error stays nil", err: nil, msg: "ensure yt-dlp"},
		{name: "sentinel", err: ErrInstall, msg: "ensure ffmpeg", expected: "ensure ffmpeg: installation failed"},
		{name: "empty message", err: errors.New("boom"), msg: "", expected: ": boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrap(tt.err, tt.msg)
			if tt.err == nil {
				assert.NoError(t, result)
				return
			}
			assert.EqualError(t, result, tt.expected)
			assert.ErrorIs(t, result, tt.err)
		})
	}
}

func TestWrapf(t *testing.T) {
	result := Wrapf(ErrNetwork, "GET %s: status %d", "https://example.invalid/a", 404)
	assert.EqualError(t, result, "GET https://example.invalid/a: status 404: network error")
	assert.ErrorIs(t, result, ErrNetwork)

	assert.NoError(t, Wrapf(nil, "unused %d", 1))
}

func TestExitError(t *testing.T) {
	err := fmt.Errorf("download song: %w", &ExitError{
		Tool:   "yt-dlp",
		Code:   2,
		Stderr: "WARNING: slow\nERROR: video unavailable\n",
	})

	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "yt-dlp exited with code 2: ERROR: video unavailable")

	code, ok := ExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	_, ok = ExitCode(ErrNetwork)
	assert.False(t, ok)

	bare := &ExitError{Tool: "ffmpeg", Code: 1}
	assert.Equal(t, "ffmpeg exited with code 1", bare.Error())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "network", err: Wrap(ErrNetwork, "fetch"), want: "A download failed. Check your internet connection and try again."},
		{name: "install", err: Wrap(ErrInstall, "ffmpeg"), want: "A required tool could not be installed."},
		{name: "tool failure", err: &ExitError{Tool: "python", Code: 1}, want: "An external tool reported an error."},
		{name: "no songs", err: ErrNoSongFound, want: "There are no songs in your tagging folder."},
		{name: "missing folder", err: Wrapf(ErrTaggingFolderMissing, "/music"), want: "Your tagging folder no longer exists. Choose another one with \"config set tagging_folder\"."},
		{name: "state", err: Wrap(ErrMalformedState, "config.txt line 2"), want: "The configuration file could not be read."},
		{name: "unknown", err: errors.New("???"), want: "Something went wrong. See the error log for details."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
