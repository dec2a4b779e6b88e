// Package app wires every noqturne component once and exposes the user-level
// actions the CLI runs.
package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	neturl "net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/noqturne/noqturne/internal/logger"
	"github.com/noqturne/noqturne/pkg/archive"
	"github.com/noqturne/noqturne/pkg/config"
	"github.com/noqturne/noqturne/pkg/coverart"
	"github.com/noqturne/noqturne/pkg/deps"
	"github.com/noqturne/noqturne/pkg/download"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
	"github.com/noqturne/noqturne/pkg/hooks"
	"github.com/noqturne/noqturne/pkg/process"
	"github.com/noqturne/noqturne/pkg/state"
	"github.com/noqturne/noqturne/pkg/tagger"
	"github.com/noqturne/noqturne/pkg/task"
	"github.com/noqturne/noqturne/pkg/ytdlp"
)

// Options configure New.
type Options struct {
	// ConfigPath overrides the default settings location.
	ConfigPath string
	// Verbose forces debug logging.
	Verbose bool
	// LogOutput receives console logs. Defaults to stdout.
	LogOutput io.Writer
	// Events receives dependency provisioning progress.
	Events deps.Hooks
}

// App holds the components of one noqturne process.
type App struct {
	Config     *config.Config
	ConfigPath string

	Log      *slog.Logger
	State    *state.Store
	Fetcher  *download.Manager
	Runner   process.Runner
	Archive  *archive.Manager
	Hooks    *hooks.Manager
	Deps     *deps.Provisioner
	Resolver *coverart.Resolver
	Tagger   *tagger.Tagger
	Songs    *ytdlp.Downloader
	Tasks    *task.Pool

	logger *logger.Logger
}

// New loads the settings and constructs every component.
func New(opts Options) (*App, error) {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		cfgPath = p
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg, cfgPath, opts)
}

// NewWithConfig constructs every component from an already loaded configuration.
func NewWithConfig(cfg *config.Config, cfgPath string, opts Options) (*App, error) {
	level := cfg.Settings.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	lg, err := logger.New(logger.Options{
		Level:        level,
		Format:       logger.OutputFormat(cfg.Settings.OutputFormat),
		Output:       opts.LogOutput,
		ErrorLogPath: cfg.ErrorLogPath(),
	})
	if err != nil {
		return nil, err
	}
	log := lg.Logger

	if err := fsutil.EnsureDir(cfg.BinDir()); err != nil {
		_ = lg.Close()
		return nil, fmt.Errorf("create bin directory: %w", err)
	}

	hookManager := hooks.NewHookManager()
	if err := hooks.LoadHooksFromDir(hookManager, cfg.HooksDir()); err != nil {
		_ = lg.Close()
		return nil, err
	}
	if err := hooks.LoadHooksFromConfig(hookManager, cfg.Hooks, filepath.Dir(cfgPath)); err != nil {
		_ = lg.Close()
		return nil, err
	}

	fetcher := download.NewManager(log, cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent)
	runner := process.NewExecRunner(log, cfg.Settings.ProcessTimeout)
	archiveManager := archive.NewManager(log)
	plat := cfg.Platform()

	specs := deps.DefaultSpecs(deps.SpecOptions{
		BinDir:          cfg.BinDir(),
		Platform:        plat,
		YtDlpBaseURL:    cfg.Tools.YtDlpBaseURL,
		FFmpegBaseURL:   cfg.Tools.FFmpegBaseURL,
		YtDlpMinVersion: cfg.Tools.YtDlpMinVersion,
		Python:          cfg.Python(),
		Fetcher:         fetcher,
		Archive:         archiveManager,
		Runner:          runner,
	})
	provisioner, err := deps.NewProvisioner(cfg.BinDir(), specs,
		deps.WithLogger(log),
		deps.WithHooks(hookManager),
		deps.WithEvents(opts.Events),
		deps.WithPlatform(plat.String()))
	if err != nil {
		_ = lg.Close()
		return nil, err
	}

	resolver := coverart.NewResolver(runner, fetcher, coverart.Options{
		Python:        cfg.Python(),
		ScriptPath:    cfg.ScriptPath(),
		ThumbnailHost: cfg.Tools.ThumbnailHost,
		Logger:        log,
	})

	return &App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Log:        log,
		State:      state.NewStore(cfg.StatePath(), state.DefaultValues()),
		Fetcher:    fetcher,
		Runner:     runner,
		Archive:    archiveManager,
		Hooks:      hookManager,
		Deps:       provisioner,
		Resolver:   resolver,
		Tagger:     tagger.New(resolver, log),
		Songs:      ytdlp.New(runner, log),
		Tasks:      task.NewPool(cfg.Settings.MaxConcurrent, log),
		logger:     lg,
	}, nil
}

// Close flushes the diagnostic log.
func (a *App) Close() error {
	return a.logger.Close()
}

// TaggingFolder returns the folder songs are downloaded into and tagged in.
// A folder that is gone or not a directory yields ErrTaggingFolderMissing.
func (a *App) TaggingFolder() (string, error) {
	dir, err := a.State.TaggingFolder()
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", errors.ErrTaggingFolderMissing, dir)
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", errors.ErrTaggingFolderMissing, dir)
	case err != nil:
		return "", fmt.Errorf("stat tagging folder %s: %w", dir, err)
	}
	return dir, nil
}

// SetTaggingFolder changes the tagging folder.
func (a *App) SetTaggingFolder(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	return a.State.SetTaggingFolder(abs)
}

// PrepareTagging provisions the resolver dependency and materializes the
// resolver script.
func (a *App) PrepareTagging(ctx context.Context) error {
	if _, err := a.Deps.EnsureInstalled(ctx, deps.YTMusicAPI); err != nil {
		return err
	}
	return coverart.EnsureScript(a.Config.ScriptPath())
}

// Tag tags files, or every mp3 in the tagging folder when files is empty.
func (a *App) Tag(ctx context.Context, files []string, onDone func(tagger.Report)) ([]tagger.Report, error) {
	if err := a.PrepareTagging(ctx); err != nil {
		return nil, err
	}
	dir, err := a.TaggingFolder()
	if err != nil {
		return nil, err
	}
	reports, err := a.Tagger.TagAll(ctx, dir, files, a.Config.Settings.MaxConcurrent, onDone)
	if err == nil {
		logger.Success(a.Log, "tagging finished", logger.Fields{"folder": dir, "songs": len(reports)})
	}
	return reports, err
}

// TagOne tags file with the cover art of an explicit candidate id.
func (a *App) TagOne(ctx context.Context, file, candidateID string) (tagger.Report, error) {
	return a.Tagger.TagFileWithCandidate(ctx, file, candidateID)
}

// DownloadSongs provisions yt-dlp and ffmpeg and downloads url into the tagging
// folder, returning the new mp3 files.
func (a *App) DownloadSongs(ctx context.Context, url string, onProgress func(process.Signal)) ([]string, error) {
	paths, err := a.Deps.EnsureAll(ctx, deps.YtDlp, deps.FFmpeg)
	if err != nil {
		return nil, err
	}
	dir, err := a.TaggingFolder()
	if err != nil {
		return nil, err
	}
	files, err := a.Songs.Download(ctx, ytdlp.Request{
		URL:        url,
		YtDlpPath:  paths[deps.YtDlp],
		FFmpegDir:  filepath.Dir(paths[deps.FFmpeg]),
		OutputDir:  dir,
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, err
	}
	logger.Success(a.Log, "download finished", logger.Fields{"url": url, "songs": len(files)})
	return files, nil
}

// Fetch downloads a single URL to destPath.
func (a *App) Fetch(ctx context.Context, url, destPath string, onProgress download.ProgressFunc) error {
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", destPath, err)
	}
	return a.Fetcher.Download(ctx, url, abs, onProgress)
}

// FetchAll downloads urls concurrently into dir and returns the local paths in
// the order of urls. With reuse, non-empty files already in dir are kept.
func (a *App) FetchAll(ctx context.Context, dir string, urls []string, reuse bool, onProgress download.ProgressFunc) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	items := make([]download.Item, 0, len(urls))
	for i, raw := range urls {
		u, err := neturl.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", raw, err)
		}
		items = append(items, download.Item{ID: strconv.Itoa(i), URL: u})
	}
	paths, err := a.Fetcher.FetchAll(ctx, items, download.Options{
		Dir:         abs,
		Concurrency: a.Config.Settings.MaxConcurrent,
		Reuse:       reuse,
		OnProgress:  onProgress,
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = paths[it.ID]
	}
	return out, nil
}

// RefreshDependencies updates every dependency. Individual update failures are
// returned in the report.
func (a *App) RefreshDependencies(ctx context.Context) (deps.UpdateReport, error) {
	return a.Deps.UpdateAll(ctx)
}
