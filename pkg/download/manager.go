package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "noqturne/1.0"

// Manager is the HTTP-based Fetcher with chunked progress reporting and optional
// checksum verification.
type Manager struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewManager creates a new download manager. timeout bounds connection setup and
// response headers; body transfer is bounded by the caller's context only, since
// tool archives can take minutes.
func NewManager(logger *slog.Logger, timeout time.Duration, userAgent string) *Manager {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
		transport.TLSHandshakeTimeout = timeout
	}
	return &Manager{
		client:    &http.Client{Transport: transport},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Download fetches rawURL to destPath, reporting progress to onProgress.
func (m *Manager) Download(ctx context.Context, rawURL, destPath string, onProgress ProgressFunc) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, errors.ErrNetwork)
	}
	absDest, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("%s: %w", destPath, errors.ErrInvalidPath)
	}
	_, err = m.Fetch(ctx, Item{ID: filepath.Base(absDest), URL: u, Filename: filepath.Base(absDest)},
		Options{Dir: filepath.Dir(absDest), OnProgress: onProgress})
	return err
}

// FetchAll downloads multiple items concurrently and returns a map of item IDs to downloaded file paths.
func (m *Manager) FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = max(2, runtime.NumCPU()/2)
	}
	if err := prepareDir(opts.Dir); err != nil {
		return nil, err
	}

	byURL, err := buildURLIndex(items)
	if err != nil {
		return nil, err
	}
	results, err := m.runDownloadWorkers(ctx, items, byURL, opts)
	if err != nil {
		return nil, err
	}
	return mapResultsByID(items, results), nil
}

func prepareDir(dir string) error {
	if dir == "" || !filepath.IsAbs(dir) {
		return fmt.Errorf("download dir must be absolute: %s: %w", dir, errors.ErrInvalidPath)
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return errors.Wrap(err, "could not create download dir")
	}
	return nil
}

// buildURLIndex groups item indexes by URL so a URL listed twice is fetched once.
func buildURLIndex(items []Item) (map[string][]int, error) {
	byURL := make(map[string][]int)
	for i, it := range items {
		if it.URL == nil {
			return nil, fmt.Errorf("item %d has nil URL: %w", i, errors.ErrNetwork)
		}
		key := it.URL.String()
		byURL[key] = append(byURL[key], i)
	}
	return byURL, nil
}

func mapResultsByID(items []Item, results []string) map[string]string {
	out := make(map[string]string, len(items))
	for i, it := range items {
		out[it.ID] = results[i]
	}
	return out
}

// Fetch downloads a single item and returns the path to the downloaded file.
func (m *Manager) Fetch(ctx context.Context, item Item, opts Options) (string, error) {
	if err := prepareDir(opts.Dir); err != nil {
		return "", err
	}
	return m.fetchOne(ctx, item, opts)
}

func (m *Manager) runDownloadWorkers(ctx context.Context, items []Item, byURL map[string][]int, opts Options) ([]string, error) {
	results := make([]string, len(items))
	var firstErr error
	var mu sync.Mutex

	tasks := make(chan string)
	var wg sync.WaitGroup

	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for urlStr := range tasks {
				idx := byURL[urlStr][0]
				p, err := m.fetchOne(ctx, items[idx], opts)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				for _, i := range byURL[urlStr] {
					results[i] = p
				}
				mu.Unlock()
			}
		}()
	}

	for i, it := range items {
		key := it.URL.String()
		if byURL[key][0] == i {
			tasks <- key
		}
	}
	close(tasks)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (m *Manager) fetchOne(ctx context.Context, item Item, opts Options) (string, error) {
	if item.URL == nil {
		return "", fmt.Errorf("nil URL: %w", errors.ErrNetwork)
	}
	filename, err := selectFilename(item)
	if err != nil {
		return "", err
	}
	absPath := filepath.Join(opts.Dir, filename)
	if opts.Reuse {
		if reuse, ok := tryReuseExisting(absPath, item.Checksum); ok {
			m.logger.Debug("reusing existing download", "path", reuse)
			return reuse, nil
		}
	}

	resp, err := m.doRequest(ctx, item.URL.String())
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	report := newReporter(item.ID, resp.ContentLength, opts.OnProgress)
	tmpPath, written, err := writeBodyToTemp(ctx, resp.Body, absPath, report)
	if err != nil {
		return "", err
	}
	if item.Checksum != "" {
		ok, err := verifySHA256(tmpPath, item.Checksum)
		if err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
		if !ok {
			_ = os.Remove(tmpPath)
			return "", fmt.Errorf("checksum mismatch for %s: %w", item.URL, errors.ErrFileHashMismatch)
		}
	}
	if err := finalizeFile(tmpPath, absPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	report.done(written)
	m.logger.Debug("download complete", "url", item.URL.String(), "path", absPath, "size", humanize.Bytes(uint64(written)))
	return absPath, nil
}

// selectFilename returns the destination name for item. Names derived from a URL
// path fall back to a hash of the URL when the path has no usable base.
func selectFilename(item Item) (string, error) {
	name := item.Filename
	if name == "" {
		name = path.Base(item.URL.Path)
		if name == "." || name == "/" || name == "" {
			h := sha256.Sum256([]byte(item.URL.String()))
			name = hex.EncodeToString(h[:])
		}
	}
	if name != filepath.Base(name) || name == ".." {
		return "", fmt.Errorf("filename %q: %w", name, errors.ErrInvalidPath)
	}
	return name, nil
}

func tryReuseExisting(absPath, checksum string) (string, bool) {
	if st, err := os.Stat(absPath); err == nil && st.Size() > 0 {
		if checksum == "" {
			return absPath, true
		}
		ok, err := verifySHA256(absPath, checksum)
		if err == nil && ok {
			return absPath, true
		}
	}
	return "", false
}

func (m *Manager) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request for %s: %w", errors.ErrNetwork, rawURL, err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", errors.ErrNetwork, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: unexpected status code: %d", errors.ErrNetwork, rawURL, resp.StatusCode)
	}
	return resp, nil
}

// FetchBytes implements Fetcher.
func (m *Manager) FetchBytes(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	resp, err := m.doRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", errors.ErrNetwork, rawURL, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %s", errors.ErrNetwork, rawURL, humanize.Bytes(uint64(limit)))
	}
	return data, nil
}

func writeBodyToTemp(ctx context.Context, body io.Reader, absPath string, report *reporter) (string, int64, error) {
	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return "", 0, errors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "dl-*.tmp")
	if err != nil {
		return "", 0, errors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()
	fail := func(err error) (string, int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", 0, err
	}

	written, err := copyChunked(ctx, tmp, body, report)
	if err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(errors.Wrap(err, "could not sync file"))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, errors.Wrap(err, "could not close file")
	}
	return tmpPath, written, nil
}

// copyChunked copies src to dst in ChunkSize steps, checking ctx between steps.
func copyChunked(ctx context.Context, dst io.Writer, src io.Reader, report *reporter) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: transfer interrupted: %w", errors.ErrNetwork, err)
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, errors.Wrap(werr, "could not write file")
			}
			written += int64(n)
			report.chunk(written)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("%w: read body: %w", errors.ErrNetwork, rerr)
		}
	}
}

func finalizeFile(tmpPath, absPath string) error {
	if err := os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(err, "could not set permissions")
	}
	if err := fsutil.Move(tmpPath, absPath); err != nil {
		return errors.Wrap(err, "could not finalize file")
	}
	return nil
}

func verifySHA256(path string, wantHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, errors.Wrap(err, "hashing")
	}
	got := hex.EncodeToString(h.Sum(nil))
	return got == normalizeHex(wantHex), nil
}

func normalizeHex(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
