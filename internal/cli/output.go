package cli

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/noqturne/noqturne/pkg/deps"
	"github.com/noqturne/noqturne/pkg/download"
)

func isTerminalFd(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// newBar returns a progress bar on terminals and nil elsewhere. A negative total
// renders a spinner.
func newBar(w io.Writer, total int64, desc string, bytes bool) *progressbar.ProgressBar {
	if !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(bytes),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)
}

// byteProgress adapts a download.ProgressFunc to a progress bar, or to a line
// per completed transfer when not on a terminal.
func byteProgress(w io.Writer, desc string) download.ProgressFunc {
	var bar *progressbar.ProgressBar
	return func(p download.Progress) {
		if bar == nil {
			bar = newBar(w, p.Total, desc, true)
		}
		if bar != nil {
			_ = bar.Set64(p.Bytes)
			if p.Done {
				_ = bar.Finish()
			}
			return
		}
		if p.Done {
			printf(w, "%s: done\n", desc)
		}
	}
}

// depsReporter prints dependency provisioning events.
type depsReporter struct {
	out     io.Writer
	verbose bool

	mu       sync.Mutex
	progress map[string]download.ProgressFunc
}

func newDepsReporter(out io.Writer, verbose bool) *depsReporter {
	return &depsReporter{out: out, verbose: verbose, progress: map[string]download.ProgressFunc{}}
}

func (r *depsReporter) hooks() deps.Hooks {
	return deps.Hooks{OnEvent: r.onEvent}
}

func (r *depsReporter) onEvent(e deps.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Progress != nil {
		fn, ok := r.progress[e.Dependency]
		if !ok {
			fn = byteProgress(r.out, "downloading "+e.Dependency)
			r.progress[e.Dependency] = fn
		}
		fn(*e.Progress)
		if e.Progress.Done {
			delete(r.progress, e.Dependency)
		}
		return
	}

	switch e.Phase {
	case deps.PhaseChecking:
		if !r.verbose {
			return
		}
	case deps.PhasePresent:
		if e.Msg == "already installed" && !r.verbose {
			return
		}
	}
	if e.Msg != "" {
		printf(r.out, "%s: %s (%s)\n", e.Phase, e.Dependency, e.Msg)
	} else {
		printf(r.out, "%s: %s\n", e.Phase, e.Dependency)
	}
}
