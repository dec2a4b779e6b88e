package process

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/noqturne/noqturne/pkg/errors"
)

// maxLineSize bounds a single output line. Longer lines fail the scan with ErrProcessIO.
const maxLineSize = 1024 * 1024

// Options configures a Monitor.
type Options struct {
	// Classifier maps lines to signals. Defaults to DownloaderClassifier.
	Classifier Classifier
	// OnProgress is called for every SignalProgress line.
	OnProgress func(Signal)
	// OnLine is called for every line read from either stream.
	OnLine func(stream Stream, line string)
}

// Result is the outcome of a monitored process.
type Result struct {
	// Stdout holds every stdout line in order.
	Stdout []string
	// Stderr holds the full stderr text.
	Stderr string
	// Errors accumulates the stderr lines classified as SignalError, newline separated.
	Errors string
	// ExitErr is the error returned by the wait function, nil on a zero exit.
	ExitErr error
}

// Monitor reads the stdout and stderr of a running process concurrently and
// classifies every line while the process runs.
type Monitor struct {
	wg   sync.WaitGroup
	wait func() error
	opts Options

	mu      sync.Mutex
	stdout  []string
	stderr  strings.Builder
	errs    strings.Builder
	scanErr error

	once   sync.Once
	result Result
	err    error
}

// Watch starts one reader goroutine per stream and returns immediately. wait is
// called by AwaitCompletion after both streams reached EOF.
func Watch(stdout, stderr io.Reader, wait func() error, opts Options) *Monitor {
	if opts.Classifier == nil {
		opts.Classifier = DownloaderClassifier{}
	}
	m := &Monitor{wait: wait, opts: opts}
	m.wg.Add(2)
	go m.read(Stdout, stdout)
	go m.read(Stderr, stderr)
	return m
}

func (m *Monitor) read(stream Stream, r io.Reader) {
	defer m.wg.Done()
	if r == nil {
		return
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	for scanner.Scan() {
		m.handle(stream, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		if closedReader(err) {
			return
		}
		m.mu.Lock()
		if m.scanErr == nil {
			m.scanErr = errors.Wrapf(errors.ErrProcessIO, "read %s: %v", stream, err)
		}
		m.mu.Unlock()
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (m *Monitor) handle(stream Stream, line string) {
	if m.opts.OnLine != nil {
		m.opts.OnLine(stream, line)
	}
	sig := m.opts.Classifier.Classify(stream, line)

	m.mu.Lock()
	if stream == Stdout {
		m.stdout = append(m.stdout, line)
	} else {
		m.stderr.WriteString(line)
		m.stderr.WriteByte('\n')
	}
	if sig.Kind == SignalError {
		m.errs.WriteString(line)
		m.errs.WriteByte('\n')
	}
	m.mu.Unlock()

	if sig.Kind == SignalProgress && m.opts.OnProgress != nil {
		m.opts.OnProgress(sig)
	}
}

// AwaitCompletion blocks until both readers finished and the process exited.
// The returned error is non-nil only when reading output failed; the process
// exit status is reported through Result.ExitErr. Calling it again returns the
// same values.
func (m *Monitor) AwaitCompletion() (Result, error) {
	m.once.Do(func() {
		m.wg.Wait()
		var exitErr error
		if m.wait != nil {
			exitErr = m.wait()
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.result = Result{
			Stdout:  m.stdout,
			Stderr:  m.stderr.String(),
			Errors:  strings.TrimRight(m.errs.String(), "\n"),
			ExitErr: exitErr,
		}
		m.err = m.scanErr
	})
	return m.result, m.err
}

// closedReader reports whether err comes from a stream closed while being read.
func closedReader(err error) bool {
	return stderrors.Is(err, os.ErrClosed) || stderrors.Is(err, io.ErrClosedPipe)
}

// scanLines splits on '\n' and on bare '\r', so carriage-return progress updates
// arrive as separate lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell "\r\n" from a bare "\r".
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
