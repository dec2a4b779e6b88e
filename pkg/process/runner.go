//go:generate mockgen -destination=./mocks/runner.go . Runner

package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/noqturne/noqturne/pkg/errors"
)

// DefaultTimeout bounds a child process when neither the Command nor the Runner sets one.
const DefaultTimeout = 30 * time.Minute

// pipeCloseDelay is how long output readers may outlive a cancelled process
// before its pipes are closed under them.
const pipeCloseDelay = 2 * time.Second

// Command describes one invocation of an external tool.
type Command struct {
	// Name is a human-readable tool name used in errors and logs.
	Name string
	// Path is the executable to run.
	Path string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
	// Timeout overrides the runner's default timeout when positive.
	Timeout time.Duration

	Classifier Classifier
	OnProgress func(Signal)
	OnLine     func(stream Stream, line string)
}

// Runner runs external tools to completion.
type Runner interface {
	// Run starts cmd, monitors its output and waits for it to exit. A non-zero
	// exit is returned as *errors.ExitError alongside the collected Result.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewExecRunner creates a Runner. A non-positive timeout selects DefaultTimeout.
func NewExecRunner(logger *slog.Logger, timeout time.Duration) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{logger: logger, timeout: timeout}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	name := c.Name
	if name == "" {
		name = c.Path
	}
	timeout := r.timeout
	if c.Timeout > 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Path, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	setProcessGroup(cmd)
	cmd.WaitDelay = pipeCloseDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("%s: stdout pipe: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("%s: stderr pipe: %w", name, err)
	}

	r.logger.Debug("starting external tool", "tool", name, "path", c.Path, "args", c.Args)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan struct{})
	stopClosing := context.AfterFunc(ctx, func() {
		t := time.NewTimer(pipeCloseDelay)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			r.logger.Debug("closing output of cancelled tool", "tool", name)
			_ = stdout.Close()
			_ = stderr.Close()
		}
	})
	defer stopClosing()

	mon := Watch(stdout, stderr, cmd.Wait, Options{
		Classifier: c.Classifier,
		OnProgress: c.OnProgress,
		OnLine:     c.OnLine,
	})
	res, ioErr := mon.AwaitCompletion()
	close(done)
	r.logger.Debug("external tool finished", "tool", name, "duration", time.Since(started).Round(time.Millisecond))

	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s timed out after %s: %w", name, timeout, context.DeadlineExceeded)
	}
	if ioErr != nil {
		return res, fmt.Errorf("%s: %w", name, ioErr)
	}
	if res.ExitErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(res.ExitErr, &exitErr) && exitErr.ExitCode() >= 0 {
			return res, &errors.ExitError{Tool: name, Code: exitErr.ExitCode(), Stderr: res.Stderr}
		}
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return res, fmt.Errorf("wait %s: %w", name, res.ExitErr)
	}
	return res, nil
}
