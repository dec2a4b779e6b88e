package deps

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/noqturne/noqturne/pkg/archive"
	"github.com/noqturne/noqturne/pkg/download"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
	"github.com/noqturne/noqturne/pkg/platform"
	"github.com/noqturne/noqturne/pkg/process"
)

// Dependency names.
const (
	YtDlp      = "yt-dlp"
	FFmpeg     = "ffmpeg"
	YTMusicAPI = "ytmusicapi"
)

const ffmpegScratchDir = "ffmpeg_temp"

// ArchiveInstaller extracts an archive and relocates files out of it.
type ArchiveInstaller interface {
	Install(ctx context.Context, archivePath, scratchDir string, relocations []archive.Relocation) error
}

// SpecOptions carries everything DefaultSpecs needs to build the tool specs.
type SpecOptions struct {
	BinDir          string
	Platform        platform.Platform
	YtDlpBaseURL    string
	FFmpegBaseURL   string
	YtDlpMinVersion string
	Python          string

	Fetcher download.Fetcher
	Archive ArchiveInstaller
	Runner  process.Runner
}

// DefaultSpecs returns the yt-dlp, ffmpeg and ytmusicapi specs in that order.
func DefaultSpecs(o SpecOptions) []*Spec {
	if o.Python == "" {
		o.Python = o.Platform.PythonInterpreter()
	}
	return []*Spec{ytDlpSpec(o), ffmpegSpec(o), ytMusicAPISpec(o)}
}

func ytDlpSpec(o SpecOptions) *Spec {
	asset, assetErr := o.Platform.YtDlpAsset()
	name := asset
	if assetErr != nil {
		name = o.Platform.ExeName(YtDlp)
	}
	path := filepath.Join(o.BinDir, name)

	return &Spec{
		Name:       YtDlp,
		Path:       path,
		MinVersion: o.YtDlpMinVersion,
		Check: func(context.Context) (bool, error) {
			return fileExists(path), nil
		},
		Install: func(ctx context.Context, onProgress download.ProgressFunc) error {
			if assetErr != nil {
				return assetErr
			}
			u, err := assetURL(o.YtDlpBaseURL, asset)
			if err != nil {
				return err
			}
			_, err = o.Fetcher.Fetch(ctx, download.Item{ID: YtDlp, URL: u, Filename: asset},
				download.Options{Dir: o.BinDir, OnProgress: onProgress})
			if err != nil {
				return err
			}
			if !o.Platform.IsWindows() {
				if err := os.Chmod(path, fsutil.FileModeExec); err != nil {
					return fmt.Errorf("chmod %s: %w", path, err)
				}
			}
			return nil
		},
		SelfUpdate: func(ctx context.Context) error {
			_, err := o.Runner.Run(ctx, process.Command{Name: YtDlp, Path: path, Args: []string{"-U"}})
			return err
		},
		Version: func(ctx context.Context) (string, error) {
			res, err := o.Runner.Run(ctx, process.Command{Name: YtDlp, Path: path, Args: []string{"--version"}})
			if err != nil {
				return "", err
			}
			return firstLine(res.Stdout), nil
		},
	}
}

func ffmpegSpec(o SpecOptions) *Spec {
	path := filepath.Join(o.BinDir, o.Platform.ExeName("ffmpeg"))
	extras := []string{
		filepath.Join(o.BinDir, o.Platform.ExeName("ffprobe")),
		filepath.Join(o.BinDir, o.Platform.ExeName("ffplay")),
	}

	return &Spec{
		Name:     FFmpeg,
		Path:     path,
		Binaries: extras,
		Check: func(context.Context) (bool, error) {
			for _, p := range append([]string{path}, extras...) {
				if !fileExists(p) {
					return false, nil
				}
			}
			return true, nil
		},
		Install: func(ctx context.Context, onProgress download.ProgressFunc) error {
			asset, ext, err := o.Platform.FFmpegAsset()
			if err != nil {
				return err
			}
			u, err := assetURL(o.FFmpegBaseURL, asset)
			if err != nil {
				return err
			}
			archivePath, err := o.Fetcher.Fetch(ctx, download.Item{ID: FFmpeg, URL: u, Filename: "ffmpeg." + ext},
				download.Options{Dir: o.BinDir, OnProgress: onProgress})
			if err != nil {
				return err
			}
			var relocations []archive.Relocation
			for _, dest := range append([]string{path}, extras...) {
				relocations = append(relocations, archive.Relocation{
					Name: filepath.Base(dest),
					Dest: dest,
					Mode: fsutil.FileModeExec,
				})
			}
			return o.Archive.Install(ctx, archivePath, filepath.Join(o.BinDir, ffmpegScratchDir), relocations)
		},
		Version: func(ctx context.Context) (string, error) {
			res, err := o.Runner.Run(ctx, process.Command{Name: FFmpeg, Path: path, Args: []string{"-version"}})
			if err != nil {
				return "", err
			}
			// "ffmpeg version N-118896-g9f0970ee35-20250318 Copyright ..."
			fields := strings.Fields(firstLine(res.Stdout))
			if len(fields) >= 3 && fields[1] == "version" {
				return fields[2], nil
			}
			return "", fmt.Errorf("unexpected ffmpeg version output")
		},
	}
}

func ytMusicAPISpec(o SpecOptions) *Spec {
	pip := func(ctx context.Context, args ...string) (process.Result, error) {
		return o.Runner.Run(ctx, process.Command{
			Name: "pip",
			Path: o.Python,
			Args: append([]string{"-m", "pip"}, args...),
		})
	}

	return &Spec{
		Name: YTMusicAPI,
		Path: o.Python,
		Check: func(ctx context.Context) (bool, error) {
			_, err := pip(ctx, "show", YTMusicAPI)
			if err == nil {
				return true, nil
			}
			if _, ok := errors.ExitCode(err); ok {
				return false, nil
			}
			return false, err
		},
		Install: func(ctx context.Context, onProgress download.ProgressFunc) error {
			onProgress(download.Progress{ItemID: YTMusicAPI, Total: -1, Indeterminate: true})
			if _, err := pip(ctx, "install", YTMusicAPI); err != nil {
				return err
			}
			onProgress(download.Progress{ItemID: YTMusicAPI, Total: -1, Percent: 100, Done: true})
			return nil
		},
		SelfUpdate: func(ctx context.Context) error {
			_, err := pip(ctx, "install", "-U", YTMusicAPI)
			return err
		},
		Version: func(ctx context.Context) (string, error) {
			res, err := pip(ctx, "show", YTMusicAPI)
			if err != nil {
				return "", err
			}
			for _, line := range res.Stdout {
				if v, ok := strings.CutPrefix(line, "Version:"); ok {
					return strings.TrimSpace(v), nil
				}
			}
			return "", fmt.Errorf("no version in pip show output")
		},
	}
}

func assetURL(base, asset string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", base, err)
	}
	return u.JoinPath(asset), nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func firstLine(lines []string) string {
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			return s
		}
	}
	return ""
}
