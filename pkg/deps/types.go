// Package deps provisions the external tools noqturne drives: it detects, installs
// and updates yt-dlp, the ffmpeg build and the ytmusicapi Python package.
package deps

import (
	"context"
	"time"

	"github.com/noqturne/noqturne/pkg/download"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/hooks"
)

// State is the provisioning state of one dependency.
type State int

const (
	Unchecked State = iota
	Checking
	Missing
	Downloading
	Installing
	Present
	Failed
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Missing:
		return "missing"
	case Downloading:
		return "downloading"
	case Installing:
		return "installing"
	case Present:
		return "present"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Spec describes one provisionable dependency.
type Spec struct {
	// Name is unique within a Provisioner.
	Name string
	// Path is the canonical location of the dependency once present.
	Path string
	// Binaries lists additional files installed alongside Path.
	Binaries []string

	// Check reports whether the dependency is present. It must not download anything.
	Check func(ctx context.Context) (bool, error)
	// Install fetches and installs the dependency.
	Install func(ctx context.Context, onProgress download.ProgressFunc) error
	// SelfUpdate, when set, asks an installed dependency to update itself.
	SelfUpdate func(ctx context.Context) error
	// Version, when set, reports the installed version.
	Version func(ctx context.Context) (string, error)
	// MinVersion is an optional hashicorp/go-version constraint such as ">= 2024.01.01".
	MinVersion string
}

// Event represents a simple progress notification.
type Event struct {
	Phase      string // checking|downloading|installing|updating|present|failed
	Dependency string
	Msg        string
	// Progress is set for downloading events.
	Progress *download.Progress
}

// Event phases.
const (
	PhaseChecking    = "checking"
	PhaseDownloading = "downloading"
	PhaseInstalling  = "installing"
	PhaseUpdating    = "updating"
	PhasePresent     = "present"
	PhaseFailed      = "failed"
)

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// HookRunner runs user scripts after installs and updates.
type HookRunner interface {
	Execute(ctx context.Context, hookType hooks.HookType, hctx hooks.HookContext) error
}

// Status is a snapshot of one dependency.
type Status struct {
	Name    string
	State   State
	Path    string
	Version string
	// UpdateFailures counts consecutive failed updates.
	UpdateFailures int
	LastError      string
	CheckedAt      time.Time
}

// UpdateResult is the outcome of updating one dependency.
type UpdateResult struct {
	Name string
	Err  error
}

// UpdateReport collects the per-dependency results of UpdateAll.
type UpdateReport struct {
	Results []UpdateResult
}

// Failed returns the results that carry an error.
func (r UpdateReport) Failed() []UpdateResult {
	var out []UpdateResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every failure, or returns nil when all updates succeeded.
func (r UpdateReport) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}
