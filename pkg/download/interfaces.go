//go:generate mockgen -destination=./mocks/download.go . Fetcher

package download

import (
	"context"
	"net/url"
)

// ChunkSize is the size of a single read/write step while streaming a body to disk.
const ChunkSize = 32 * 1024

// Fetcher downloads remote assets: tool binaries, build archives and thumbnails.
type Fetcher interface {
	// Fetch downloads a single item into opts.Dir and returns the absolute local path.
	// The destination is written through a temp file and renamed on success.
	Fetch(ctx context.Context, item Item, opts Options) (string, error)

	// FetchAll downloads all items concurrently and returns a map from Item.ID to
	// absolute local path.
	FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error)

	// FetchBytes downloads a small body into memory. Bodies larger than limit bytes fail.
	FetchBytes(ctx context.Context, rawURL string, limit int64) ([]byte, error)
}

// Item represents one remote resource to download.
type Item struct {
	ID       string   // stable identifier, unique within a batch
	URL      *url.URL // source URL to download
	Checksum string   // optional hex-encoded SHA-256 checksum; verified before the rename
	Filename string   // optional destination filename; derived from the URL when empty
}

// Options control the behavior of the download manager.
type Options struct {
	Dir         string // destination directory. Must be absolute.
	Concurrency int    // number of parallel downloads for FetchAll; if <=0, a sane default is used
	// Reuse keeps an existing non-empty destination (matching Checksum when set)
	// instead of downloading again.
	Reuse bool
	// OnProgress receives progress for every item. It may be called from several
	// goroutines during FetchAll.
	OnProgress ProgressFunc
}

// Progress describes the state of one transfer.
type Progress struct {
	ItemID string
	Bytes  int64
	// Total is the announced body size, -1 when the server did not send one.
	Total int64
	// Percent is non-decreasing over one transfer and ends at exactly 100.
	Percent float64
	// Indeterminate is set while Total is unknown.
	Indeterminate bool
	// Done is set on the final report after the file has been finalized.
	Done bool
}

// ProgressFunc receives progress reports.
type ProgressFunc func(Progress)
