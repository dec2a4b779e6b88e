// Package ytdlp downloads songs as mp3 files with yt-dlp.
package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/noqturne/noqturne/pkg/fsutil"
	"github.com/noqturne/noqturne/pkg/process"
)

// OutputTemplate names downloaded files after the video title.
const OutputTemplate = "%(title)s.%(ext)s"

// Request describes one download.
type Request struct {
	URL string
	// YtDlpPath is the yt-dlp executable.
	YtDlpPath string
	// FFmpegDir is the directory holding ffmpeg and ffprobe.
	FFmpegDir string
	// OutputDir receives the mp3 files, normally the tagging folder.
	OutputDir string
	// OnProgress receives "Downloading item X of Y" signals of playlists.
	OnProgress func(process.Signal)
	// OnLine sees every output line.
	OnLine func(stream process.Stream, line string)
}

// Args returns the yt-dlp argument vector for req. Double quotes are stripped
// from titles so they are safe as file names and tag values.
func Args(req Request) []string {
	return []string{
		"--replace-in-metadata", "title", `["]`, "",
		"-x",
		"--audio-format", "mp3",
		"--ffmpeg-location", req.FFmpegDir,
		"-P", req.OutputDir,
		"-o", OutputTemplate,
		req.URL,
	}
}

// Downloader runs yt-dlp.
type Downloader struct {
	runner process.Runner
	logger *slog.Logger
}

// New creates a Downloader.
func New(runner process.Runner, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{runner: runner, logger: logger}
}

// Download fetches req.URL and returns the mp3 files that appeared in
// req.OutputDir, sorted by name.
func (d *Downloader) Download(ctx context.Context, req Request) ([]string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("download: empty URL")
	}
	if err := fsutil.EnsureDir(req.OutputDir); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", req.OutputDir, err)
	}
	before, err := listMP3(req.OutputDir)
	if err != nil {
		return nil, err
	}

	d.logger.Info("downloading", "url", req.URL, "dir", req.OutputDir)
	res, err := d.runner.Run(ctx, process.Command{
		Name:       "yt-dlp",
		Path:       req.YtDlpPath,
		Args:       Args(req),
		Classifier: process.DownloaderClassifier{},
		OnProgress: req.OnProgress,
		OnLine:     req.OnLine,
	})
	if res.Errors != "" {
		d.logger.Error("yt-dlp reported errors", "url", req.URL, "errors", res.Errors)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}

	after, err := listMP3(req.OutputDir)
	if err != nil {
		return nil, err
	}
	var added []string
	for name := range after {
		if _, seen := before[name]; !seen {
			added = append(added, filepath.Join(req.OutputDir, name))
		}
	}
	sort.Strings(added)
	d.logger.Info("download finished", "url", req.URL, "files", len(added))
	return added, nil
}

func listMP3(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".mp3") {
			out[e.Name()] = struct{}{}
		}
	}
	return out, nil
}
