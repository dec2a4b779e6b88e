package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/noqturne/noqturne/internal/logger"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/process"
	mock_process "github.com/noqturne/noqturne/pkg/process/mocks"
	"github.com/noqturne/noqturne/test/testutil"
)

const fakeYtDlp = `
while [ $# -gt 0 ]; do
  case "$1" in
    -P) shift; out="$1" ;;
  esac
  shift
done
echo "[download] Downloading item 1 of 2"
: > "$out/First Song.mp3"
echo "[download] Downloading item 2 of 2"
: > "$out/Second Song.mp3"
echo "WARNING: something minor" >&2
`

func TestArgs(t *testing.T) {
	got := Args(Request{URL: "https://music.test/watch?v=1", FFmpegDir: "/data/bin", OutputDir: "/music"})
	assert.Equal(t, []string{
		"--replace-in-metadata", "title", `["]`, "",
		"-x",
		"--audio-format", "mp3",
		"--ffmpeg-location", "/data/bin",
		"-P", "/music",
		"-o", "%(title)s.%(ext)s",
		"https://music.test/watch?v=1",
	}, got)
}

func TestDownload_ReturnsNewFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "Old.mp3"), nil, 0o644))

	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd process.Command) (process.Result, error) {
			assert.Equal(t, "/bin/yt-dlp", cmd.Path)
			assert.IsType(t, process.DownloaderClassifier{}, cmd.Classifier)
			require.NoError(t, os.WriteFile(filepath.Join(out, "New.mp3"), nil, 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(out, "New.webm.part"), nil, 0o644))
			return process.Result{}, nil
		})

	files, err := New(runner, logger.NewTest()).Download(context.Background(), Request{
		URL: "https://music.test/1", YtDlpPath: "/bin/yt-dlp", FFmpegDir: "/bin", OutputDir: out,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "New.mp3")}, files)
}

func TestDownload_ToolFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(process.Result{Errors: "ERROR: Private video"},
			&errors.ExitError{Tool: "yt-dlp", Code: 1, Stderr: "ERROR: Private video"})

	_, err := New(runner, logger.NewTest()).Download(context.Background(), Request{
		URL: "https://music.test/1", YtDlpPath: "/bin/yt-dlp", OutputDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrToolFailed)
	assert.Contains(t, err.Error(), "Private video")
}

func TestDownload_EmptyURL(t *testing.T) {
	_, err := New(nil, logger.NewTest()).Download(context.Background(), Request{OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestDownload_WithFakeTool(t *testing.T) {
	bin := t.TempDir()
	out := filepath.Join(t.TempDir(), "Downloads")
	tool := testutil.WriteScript(t, bin, "yt-dlp", fakeYtDlp)

	var mu sync.Mutex
	var percents []float64
	d := New(process.NewExecRunner(logger.NewTest(), 0), logger.NewTest())
	files, err := d.Download(context.Background(), Request{
		URL:       "https://music.test/playlist",
		YtDlpPath: tool,
		FFmpegDir: bin,
		OutputDir: out,
		OnProgress: func(s process.Signal) {
			mu.Lock()
			percents = append(percents, s.Percent())
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "First Song.mp3"),
		filepath.Join(out, "Second Song.mp3"),
	}, files)
	assert.Equal(t, []float64{50, 100}, percents)
}
