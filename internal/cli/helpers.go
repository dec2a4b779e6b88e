package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/noqturne/noqturne/internal/app"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

func configPath() string {
	if ConfigPath != nil {
		return *ConfigPath
	}
	return ""
}

func verbose() bool {
	return Verbose != nil && *Verbose
}

// withApp builds the application for one command run, hands it to fn and logs a
// failure to the diagnostic log before returning it.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	reporter := newDepsReporter(cmd.ErrOrStderr(), verbose())
	a, err := app.New(app.Options{
		ConfigPath: configPath(),
		Verbose:    verbose(),
		LogOutput:  cmd.ErrOrStderr(),
		Events:     reporter.hooks(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := fn(a); err != nil {
		a.Log.Error("command failed", "command", cmd.CommandPath(), "error", err)
		return err
	}
	return nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isTerminalFd(file.Fd())
}
