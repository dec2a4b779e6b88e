// Package process runs external tools and watches their output streams while they run.
package process

import (
	"regexp"
	"strconv"
	"strings"
)

// Stream identifies which pipe a line was read from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// SignalKind is the classification of a single output line.
type SignalKind int

const (
	// SignalNone marks a line that carries no structured information.
	SignalNone SignalKind = iota
	// SignalProgress marks a line reporting "item X of Y".
	SignalProgress
	// SignalError marks a line reporting a tool error.
	SignalError
)

// Signal is the structured information extracted from one output line.
type Signal struct {
	Kind    SignalKind
	Stream  Stream
	Line    string
	Current int
	Total   int
}

// Percent converts a progress signal into a 0-100 value. It returns 0 when the total is unknown.
func (s Signal) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Current) / float64(s.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Classifier maps an output line to a Signal.
type Classifier interface {
	Classify(stream Stream, line string) Signal
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(stream Stream, line string) Signal

// Classify implements Classifier.
func (f ClassifierFunc) Classify(stream Stream, line string) Signal { return f(stream, line) }

var itemProgressPattern = regexp.MustCompile(`Downloading item (\d+) of (\d+)`)

// ErrorMarker is the substring that flags a stderr line as an error report.
const ErrorMarker = "ERROR"

// DownloaderClassifier recognizes yt-dlp's playlist progress on either stream and
// error lines on stderr.
type DownloaderClassifier struct{}

// Classify implements Classifier.
func (DownloaderClassifier) Classify(stream Stream, line string) Signal {
	sig := Signal{Kind: SignalNone, Stream: stream, Line: line}
	if m := itemProgressPattern.FindStringSubmatch(line); m != nil {
		cur, err1 := strconv.Atoi(m[1])
		total, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			sig.Kind = SignalProgress
			sig.Current = cur
			sig.Total = total
			return sig
		}
	}
	if stream == Stderr && strings.Contains(line, ErrorMarker) {
		sig.Kind = SignalError
	}
	return sig
}

// NopClassifier classifies every line as SignalNone.
var NopClassifier = ClassifierFunc(func(stream Stream, line string) Signal {
	return Signal{Kind: SignalNone, Stream: stream, Line: line}
})
