package deps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/noqturne/noqturne/pkg/download"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/hooks"
)

type entry struct {
	state          State
	version        string
	updateFailures int
	lastErr        error
	checkedAt      time.Time
}

// Provisioner guarantees that the declared dependencies are present before use.
type Provisioner struct {
	specs    []*Spec
	byName   map[string]*Spec
	locks    map[string]*depLock
	binDir   string
	platform string

	hooks  HookRunner
	events Hooks
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provisioner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithHooks runs post-install and post-update scripts through r.
func WithHooks(r HookRunner) Option {
	return func(p *Provisioner) { p.hooks = r }
}

// WithEvents registers progress callbacks.
func WithEvents(h Hooks) Option {
	return func(p *Provisioner) { p.events = h }
}

// WithPlatform sets the platform string handed to hook scripts.
func WithPlatform(platform string) Option {
	return func(p *Provisioner) { p.platform = platform }
}

// NewProvisioner creates a Provisioner for specs. Lock files live in binDir.
func NewProvisioner(binDir string, specs []*Spec, opts ...Option) (*Provisioner, error) {
	p := &Provisioner{
		byName:  make(map[string]*Spec, len(specs)),
		locks:   make(map[string]*depLock, len(specs)),
		binDir:  binDir,
		logger:  slog.Default(),
		entries: make(map[string]*entry, len(specs)),
		now:     time.Now,
	}
	for _, s := range specs {
		if s == nil || s.Name == "" {
			return nil, fmt.Errorf("dependency spec without a name")
		}
		if _, dup := p.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateDependency, s.Name)
		}
		if s.Check == nil || s.Install == nil {
			return nil, fmt.Errorf("dependency %s: check and install procedures are required", s.Name)
		}
		if s.MinVersion != "" {
			if _, err := goversion.NewConstraint(s.MinVersion); err != nil {
				return nil, fmt.Errorf("dependency %s: invalid minimum version %q: %w", s.Name, s.MinVersion, err)
			}
		}
		p.specs = append(p.specs, s)
		p.byName[s.Name] = s
		p.locks[s.Name] = newDepLock(binDir, s.Name)
		p.entries[s.Name] = &entry{state: Unchecked}
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Names returns the dependency names in declaration order.
func (p *Provisioner) Names() []string {
	out := make([]string, len(p.specs))
	for i, s := range p.specs {
		out[i] = s.Name
	}
	return out
}

// Path returns the canonical path of name without provisioning it.
func (p *Provisioner) Path(name string) (string, error) {
	s, err := p.spec(name)
	if err != nil {
		return "", err
	}
	return s.Path, nil
}

func (p *Provisioner) spec(name string) (*Spec, error) {
	s, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownDependency, name)
	}
	return s, nil
}

// EnsureInstalled makes sure name is present and returns its canonical path. A
// dependency that is already present is only checked; nothing is downloaded.
func (p *Provisioner) EnsureInstalled(ctx context.Context, name string) (string, error) {
	s, err := p.spec(name)
	if err != nil {
		return "", err
	}
	unlock, err := p.locks[name].lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := p.ensureLocked(ctx, s); err != nil {
		return "", err
	}
	return s.Path, nil
}

// ensureLocked reports whether it had to install s.
func (p *Provisioner) ensureLocked(ctx context.Context, s *Spec) (bool, error) {
	present, err := p.check(ctx, s)
	if err != nil {
		return false, p.fail(s, err)
	}
	if present {
		p.meetMinVersion(ctx, s)
		p.transition(s, Present, "already installed")
		return false, nil
	}

	p.transition(s, Missing, "not installed")
	if err := p.install(ctx, s); err != nil {
		return false, p.fail(s, err)
	}
	p.runHook(ctx, s, hooks.PostInstall)

	if s.SelfUpdate != nil {
		if err := s.SelfUpdate(ctx); err != nil {
			p.logger.Warn("self-update after install failed", "dependency", s.Name, "error", err)
		}
	}
	p.refreshVersion(ctx, s)
	p.transition(s, Present, "installed")
	return true, nil
}

func (p *Provisioner) check(ctx context.Context, s *Spec) (bool, error) {
	p.transition(s, Checking, "")
	present, err := s.Check(ctx)
	p.mu.Lock()
	p.entries[s.Name].checkedAt = p.now()
	p.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", s.Name, err)
	}
	return present, nil
}

// install runs the dependency's install procedure and verifies the result.
func (p *Provisioner) install(ctx context.Context, s *Spec) error {
	p.transition(s, Downloading, "")
	installing := false
	onProgress := func(pr download.Progress) {
		p.emit(Event{Phase: PhaseDownloading, Dependency: s.Name, Progress: &pr})
		if pr.Done && !installing {
			installing = true
			p.transition(s, Installing, "")
		}
	}
	if err := s.Install(ctx, onProgress); err != nil {
		return err
	}
	if !installing {
		p.transition(s, Installing, "")
	}

	ok, err := s.Check(ctx)
	if err != nil {
		return fmt.Errorf("verify %s: %w", s.Name, err)
	}
	if !ok {
		return fmt.Errorf("%s not found after install", s.Name)
	}
	p.logger.Info("dependency installed", "dependency", s.Name, "path", s.Path)
	return nil
}

// meetMinVersion self-updates a present dependency whose version is below
// MinVersion. Failures are logged only. The version is probed once and reused
// until an install or update replaces it.
func (p *Provisioner) meetMinVersion(ctx context.Context, s *Spec) {
	if s.MinVersion == "" {
		return
	}
	v := p.knownVersion(ctx, s)
	if v == "" {
		return
	}
	ok, err := satisfies(v, s.MinVersion)
	if err != nil {
		p.logger.Debug("unparseable version", "dependency", s.Name, "version", v, "error", err)
		return
	}
	if ok || s.SelfUpdate == nil {
		return
	}
	p.logger.Info("dependency below minimum version, updating", "dependency", s.Name, "version", v, "min", s.MinVersion)
	p.emit(Event{Phase: PhaseUpdating, Dependency: s.Name, Msg: "below " + s.MinVersion})
	if err := s.SelfUpdate(ctx); err != nil {
		p.recordUpdateFailure(s, err)
		p.logger.Warn("self-update failed", "dependency", s.Name, "error", err)
		return
	}
	p.recordUpdateSuccess(s)
	p.refreshVersion(ctx, s)
}

func satisfies(v, constraint string) (bool, error) {
	ver, err := goversion.NewVersion(v)
	if err != nil {
		return false, err
	}
	c, err := goversion.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	return c.Check(ver), nil
}

// knownVersion returns the cached version of s, probing it only when none is known.
func (p *Provisioner) knownVersion(ctx context.Context, s *Spec) string {
	p.mu.Lock()
	v := p.entries[s.Name].version
	p.mu.Unlock()
	if v != "" {
		return v
	}
	return p.refreshVersion(ctx, s)
}

func (p *Provisioner) refreshVersion(ctx context.Context, s *Spec) string {
	if s.Version == nil {
		return ""
	}
	v, err := s.Version(ctx)
	if err != nil {
		p.logger.Debug("version probe failed", "dependency", s.Name, "error", err)
		return ""
	}
	v = strings.TrimSpace(v)
	p.mu.Lock()
	p.entries[s.Name].version = v
	p.mu.Unlock()
	return v
}

// Update re-runs the install or update steps of name. Dependencies with a
// self-update are installed when missing and then asked to update themselves;
// the others are reinstalled. Failures that happen after the dependency is
// present wrap ErrToolUpdate and leave it Present.
func (p *Provisioner) Update(ctx context.Context, name string) error {
	s, err := p.spec(name)
	if err != nil {
		return err
	}
	unlock, err := p.locks[name].lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if s.SelfUpdate == nil {
		return p.reinstallLocked(ctx, s)
	}

	installed, err := p.ensureLocked(ctx, s)
	if err != nil {
		return err
	}
	if installed {
		// A fresh install already ran its self-update.
		return nil
	}
	p.emit(Event{Phase: PhaseUpdating, Dependency: s.Name})
	if err := s.SelfUpdate(ctx); err != nil {
		p.recordUpdateFailure(s, err)
		p.logger.Warn("update failed", "dependency", s.Name, "error", err)
		p.transition(s, Present, "update failed")
		return fmt.Errorf("%w: %s: %w", errors.ErrToolUpdate, s.Name, err)
	}
	p.recordUpdateSuccess(s)
	p.refreshVersion(ctx, s)
	p.runHook(ctx, s, hooks.PostUpdate)
	p.transition(s, Present, "updated")
	return nil
}

func (p *Provisioner) reinstallLocked(ctx context.Context, s *Spec) error {
	p.emit(Event{Phase: PhaseUpdating, Dependency: s.Name})
	if err := p.install(ctx, s); err != nil {
		present, checkErr := s.Check(ctx)
		if checkErr != nil || !present {
			return p.fail(s, err)
		}
		p.recordUpdateFailure(s, err)
		p.logger.Warn("reinstall failed, keeping installed copy", "dependency", s.Name, "error", err)
		p.transition(s, Present, "update failed")
		return fmt.Errorf("%w: %s: %w", errors.ErrToolUpdate, s.Name, err)
	}
	p.recordUpdateSuccess(s)
	p.refreshVersion(ctx, s)
	p.runHook(ctx, s, hooks.PostUpdate)
	p.transition(s, Present, "updated")
	return nil
}

// EnsureAll ensures every named dependency, or all of them when names is empty,
// in declaration order. It stops at the first failure.
func (p *Provisioner) EnsureAll(ctx context.Context, names ...string) (map[string]string, error) {
	if len(names) == 0 {
		names = p.Names()
	}
	paths := make(map[string]string, len(names))
	for _, n := range names {
		path, err := p.EnsureInstalled(ctx, n)
		if err != nil {
			return paths, err
		}
		paths[n] = path
	}
	return paths, nil
}

// UpdateAll updates every dependency in declaration order. Individual failures
// are collected in the report; only cancellation aborts the run.
func (p *Provisioner) UpdateAll(ctx context.Context) (UpdateReport, error) {
	var report UpdateReport
	for _, s := range p.specs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := p.Update(ctx, s.Name)
		report.Results = append(report.Results, UpdateResult{Name: s.Name, Err: err})
	}
	return report, nil
}

// Status checks every dependency without installing anything.
func (p *Provisioner) Status(ctx context.Context) ([]Status, error) {
	out := make([]Status, 0, len(p.specs))
	for _, s := range p.specs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := p.refreshStatus(ctx, s); err != nil {
			p.logger.Debug("status check failed", "dependency", s.Name, "error", err)
		}
		out = append(out, p.snapshot(s))
	}
	return out, nil
}

func (p *Provisioner) refreshStatus(ctx context.Context, s *Spec) error {
	unlock, err := p.locks[s.Name].lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	present, err := p.check(ctx, s)
	switch {
	case err != nil:
		p.setState(s, Failed, err)
		return err
	case present:
		p.knownVersion(ctx, s)
		p.setState(s, Present, nil)
	default:
		p.setState(s, Missing, nil)
	}
	return nil
}

func (p *Provisioner) snapshot(s *Spec) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[s.Name]
	st := Status{
		Name:           s.Name,
		State:          e.state,
		Path:           s.Path,
		Version:        e.version,
		UpdateFailures: e.updateFailures,
		CheckedAt:      e.checkedAt,
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}

func (p *Provisioner) runHook(ctx context.Context, s *Spec, hookType hooks.HookType) {
	if p.hooks == nil {
		return
	}
	p.mu.Lock()
	version := p.entries[s.Name].version
	p.mu.Unlock()
	hctx := hooks.HookContext{
		Dependency: s.Name,
		Version:    version,
		Path:       s.Path,
		BinDir:     p.binDir,
		Platform:   p.platform,
	}
	if err := p.hooks.Execute(ctx, hookType, hctx); err != nil {
		p.logger.Warn("hook failed", "dependency", s.Name, "hook", string(hookType), "error", err)
	}
}

func (p *Provisioner) fail(s *Spec, err error) error {
	wrapped := fmt.Errorf("%w: %s: %w", errors.ErrInstall, s.Name, err)
	p.setState(s, Failed, wrapped)
	p.emit(Event{Phase: PhaseFailed, Dependency: s.Name, Msg: err.Error()})
	p.logger.Error("dependency provisioning failed", "dependency", s.Name, "error", err)
	return wrapped
}

func (p *Provisioner) recordUpdateFailure(s *Spec, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[s.Name]
	e.updateFailures++
	e.lastErr = err
}

func (p *Provisioner) recordUpdateSuccess(s *Spec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[s.Name]
	e.updateFailures = 0
	e.lastErr = nil
}

func (p *Provisioner) setState(s *Spec, st State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[s.Name]
	e.state = st
	if err != nil {
		e.lastErr = err
	}
}

// transition records st and emits the matching event, if it has one.
func (p *Provisioner) transition(s *Spec, st State, msg string) {
	p.setState(s, st, nil)
	var phase string
	switch st {
	case Checking:
		phase = PhaseChecking
	case Downloading:
		phase = PhaseDownloading
	case Installing:
		phase = PhaseInstalling
	case Present:
		phase = PhasePresent
	default:
		p.logger.Debug("dependency state", "dependency", s.Name, "state", st.String())
		return
	}
	p.emit(Event{Phase: phase, Dependency: s.Name, Msg: msg})
}

func (p *Provisioner) emit(e Event) {
	if p.events.OnEvent != nil {
		p.events.OnEvent(e)
	}
}
