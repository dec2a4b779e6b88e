package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloaderClassifier(t *testing.T) {
	tests := []struct {
		name    string
		stream  Stream
		line    string
		kind    SignalKind
		current int
		total   int
	}{
		{name: "progress on stdout", stream: Stdout, line: "[download] Downloading item 3 of 12", kind: SignalProgress, current: 3, total: 12},
		{name: "progress on stderr", stream: Stderr, line: "Downloading item 1 of 1", kind: SignalProgress, current: 1, total: 1},
		{name: "error on stderr", stream: Stderr, line: "ERROR: [youtube] abc: Video unavailable", kind: SignalError},
		{name: "error marker on stdout ignored", stream: Stdout, line: "ERROR: not an error here", kind: SignalNone},
		{name: "plain line", stream: Stdout, line: "[ExtractAudio] Destination: song.mp3", kind: SignalNone},
		{name: "warning", stream: Stderr, line: "WARNING: something", kind: SignalNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := DownloaderClassifier{}.Classify(tt.stream, tt.line)
			assert.Equal(t, tt.kind, sig.Kind)
			assert.Equal(t, tt.stream, sig.Stream)
			assert.Equal(t, tt.line, sig.Line)
			assert.Equal(t, tt.current, sig.Current)
			assert.Equal(t, tt.total, sig.Total)
		})
	}
}

func TestSignalPercent(t *testing.T) {
	assert.InDelta(t, 25.0, Signal{Current: 1, Total: 4}.Percent(), 0.001)
	assert.InDelta(t, 100.0, Signal{Current: 5, Total: 4}.Percent(), 0.001)
	assert.Zero(t, Signal{Current: 1}.Percent())
}

func TestNopClassifier(t *testing.T) {
	sig := NopClassifier.Classify(Stderr, "ERROR: x")
	assert.Equal(t, SignalNone, sig.Kind)
}
