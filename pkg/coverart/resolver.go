// Package coverart finds cover art for a song: an external resolver script ranks
// candidate video ids, and the first candidate whose thumbnail downloads and
// decodes is cropped to a square JPEG.
package coverart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/url"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/noqturne/noqturne/pkg/download"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/process"
)

// DefaultThumbnailHost serves video thumbnails.
const DefaultThumbnailHost = "https://i.ytimg.com"

// MaxImageSize bounds a single thumbnail download.
const MaxImageSize = 16 << 20

// Variants are the thumbnail quality tiers, best first.
var Variants = []string{"maxresdefault", "hq720", "hqdefault"}

// Candidate is one resolver result. Rank is its zero-based position in the output.
type Candidate struct {
	ID   string
	Rank int
}

// Result is a resolved cover art image.
type Result struct {
	// Image is a square JPEG.
	Image       []byte
	CandidateID string
}

// Options configure a Resolver.
type Options struct {
	// Python is the interpreter running the script.
	Python string
	// ScriptPath is the materialized resolver script.
	ScriptPath string
	// ThumbnailHost is scheme and host of the thumbnail server.
	ThumbnailHost string
	Logger        *slog.Logger
}

// Resolver runs the cover-art cascade.
type Resolver struct {
	runner  process.Runner
	fetcher download.Fetcher
	python  string
	script  string
	host    string
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(runner process.Runner, fetcher download.Fetcher, opts Options) *Resolver {
	r := &Resolver{
		runner:  runner,
		fetcher: fetcher,
		python:  opts.Python,
		script:  opts.ScriptPath,
		host:    strings.TrimRight(opts.ThumbnailHost, "/"),
		logger:  opts.Logger,
	}
	if r.python == "" {
		r.python = "python3"
	}
	if r.host == "" {
		r.host = DefaultThumbnailHost
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Candidates runs the resolver script for songName and returns its output lines
// in rank order.
func (r *Resolver) Candidates(ctx context.Context, songName string) ([]Candidate, error) {
	res, err := r.runner.Run(ctx, process.Command{
		Name: "cover art resolver",
		Path: r.python,
		Args: []string{"-u", r.script, songName},
	})
	var out []Candidate
	for _, line := range res.Stdout {
		if id := strings.TrimSpace(line); id != "" {
			out = append(out, Candidate{ID: id, Rank: len(out)})
		}
	}
	if err != nil {
		if _, ok := errors.ExitCode(err); !ok {
			return nil, fmt.Errorf("run resolver for %q: %w", songName, err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %q: %w", errors.ErrSearchEmpty, songName, err)
		}
		r.logger.Warn("resolver exited with an error but printed candidates", "song", songName, "error", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q (is ytmusicapi installed?)", errors.ErrSearchEmpty, songName)
	}
	return out, nil
}

// Resolve finds cover art for songName. Candidates are tried strictly in rank
// order and the first usable image wins.
func (r *Resolver) Resolve(ctx context.Context, songName string) (Result, error) {
	candidates, err := r.Candidates(ctx, songName)
	if err != nil {
		return Result{}, err
	}
	var errs []error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		img, err := r.FetchCandidateImage(ctx, c.ID)
		if err != nil {
			r.logger.Debug("candidate rejected", "song", songName, "candidate", c.ID, "rank", c.Rank, "error", err)
			errs = append(errs, err)
			continue
		}
		return Result{Image: img, CandidateID: c.ID}, nil
	}
	return Result{}, fmt.Errorf("%w: %q tried %d candidates: %w",
		errors.ErrNoValidCandidate, songName, len(candidates), errors.Join(errs...))
}

// FetchCandidateImage downloads the best available thumbnail variant of id and
// returns it cropped to a square JPEG. A variant counts only if it both
// downloads and decodes.
func (r *Resolver) FetchCandidateImage(ctx context.Context, id string) ([]byte, error) {
	var last error
	for _, variant := range Variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := ImageURL(r.host, id, variant)
		data, err := r.fetcher.FetchBytes(ctx, u, MaxImageSize)
		if err != nil {
			last = err
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			last = fmt.Errorf("decode %s: %w", u, err)
			continue
		}
		return CropToSquare(img)
	}
	return nil, fmt.Errorf("candidate %s: %w", id, last)
}

// ImageURL returns the thumbnail URL of id in the given variant.
func ImageURL(host, id, variant string) string {
	return fmt.Sprintf("%s/vi/%s/%s.jpg", strings.TrimRight(host, "/"), url.PathEscape(id), variant)
}
