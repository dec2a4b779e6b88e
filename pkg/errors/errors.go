// Package errors defines the error taxonomy shared by every noqturne package.
// Callers classify failures with errors.Is against the sentinels below; concrete
// context is attached by wrapping with %w.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types.
var (
	// Network errors.
	ErrNetwork          = fmt.Errorf("network error")
	ErrInvalidPath      = fmt.Errorf("invalid path")
	ErrFileHashMismatch = fmt.Errorf("file hash mismatch")

	// Installation errors.
	ErrInstall             = fmt.Errorf("installation failed")
	ErrPathEscapesRoot     = fmt.Errorf("archive entry escapes destination root")
	ErrFileNotFound        = fmt.Errorf("file not found")
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")
	ErrToolUpdate          = fmt.Errorf("tool update failed")
	ErrUnknownDependency   = fmt.Errorf("unknown dependency")
	ErrDuplicateDependency = fmt.Errorf("duplicate dependency")

	// Process errors.
	ErrProcessIO  = fmt.Errorf("could not read process output")
	ErrToolFailed = fmt.Errorf("tool exited with failure")

	// Cover art errors.
	ErrSearchEmpty      = fmt.Errorf("cover art search returned no candidates")
	ErrNoValidCandidate = fmt.Errorf("no candidate produced a usable cover art image")

	// Tagging errors.
	ErrNoSongFound          = fmt.Errorf("no songs found in tagging folder")
	ErrTaggingFolderMissing = fmt.Errorf("tagging folder does not exist")

	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrMalformedState    = fmt.Errorf("malformed state record")
	ErrUnknownConfigKey  = fmt.Errorf("unknown configuration key")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")
)

// ExitError reports a child process that exited with a non-zero code.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Unwrap makes every ExitError match ErrToolFailed.
func (e *ExitError) Unwrap() error { return ErrToolFailed }

// ExitCode extracts the exit code from err when it wraps an *ExitError.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return errors.Join(errs...) }

// UserMessage maps an error to a short, non-technical sentence for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetwork):
		return "A download failed. Check your internet connection and try again."
	case errors.Is(err, ErrUnsupportedPlatform):
		return "This platform is not supported for automatic tool installation."
	case errors.Is(err, ErrInstall):
		return "A required tool could not be installed."
	case errors.Is(err, ErrToolFailed):
		return "An external tool reported an error."
	case errors.Is(err, ErrNoSongFound):
		return "There are no songs in your tagging folder."
	case errors.Is(err, ErrTaggingFolderMissing):
		return "Your tagging folder no longer exists. Choose another one with \"config set tagging_folder\"."
	case errors.Is(err, ErrMalformedState), errors.Is(err, ErrConfigParse), errors.Is(err, ErrConfigValidation):
		return "The configuration file could not be read."
	default:
		return "Something went wrong. See the error log for details."
	}
}
