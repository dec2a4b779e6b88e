package coverart

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/noqturne/noqturne/internal/logger"
	"github.com/noqturne/noqturne/pkg/download"
	mock_download "github.com/noqturne/noqturne/pkg/download/mocks"
	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/process"
	mock_process "github.com/noqturne/noqturne/pkg/process/mocks"
	"github.com/noqturne/noqturne/test/testutil"
)

func resolverOutput(ids ...string) func(context.Context, process.Command) (process.Result, error) {
	return func(_ context.Context, cmd process.Command) (process.Result, error) {
		return process.Result{Stdout: ids}, nil
	}
}

func newTestResolver(runner process.Runner, fetcher download.Fetcher, host string) *Resolver {
	return NewResolver(runner, fetcher, Options{
		Python:        "python3",
		ScriptPath:    "/data/coverArt.py",
		ThumbnailHost: host,
		Logger:        logger.NewTest(),
	})
}

func TestResolve_CascadeOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd process.Command) (process.Result, error) {
			assert.Equal(t, "python3", cmd.Path)
			assert.Equal(t, []string{"-u", "/data/coverArt.py", "Artist - Song"}, cmd.Args)
			return process.Result{Stdout: []string{"aaa", "", "  bbb ", "ccc"}}, nil
		})

	srv := testutil.NewAssetServer(t, map[string]testutil.Asset{
		// downloads but does not decode
		"/vi/bbb/hq720.jpg": {Body: []byte("<html>not an image</html>")},
		"/vi/ccc/hq720.jpg": {Body: testutil.JPEGBytes(t, 1280, 720)},
		"/vi/ccc/hqdefault.jpg": {Body: testutil.JPEGBytes(t, 480, 360)},
	})
	fetcher := download.NewManager(logger.NewTest(), 5*time.Second, "")
	r := newTestResolver(runner, fetcher, srv.URL)

	res, err := r.Resolve(context.Background(), "Artist - Song")
	require.NoError(t, err)
	assert.Equal(t, "ccc", res.CandidateID)

	assert.Equal(t, 8, srv.TotalRequests())
	assert.Equal(t, []string{
		"/vi/aaa/maxresdefault.jpg", "/vi/aaa/hq720.jpg", "/vi/aaa/hqdefault.jpg",
		"/vi/bbb/maxresdefault.jpg", "/vi/bbb/hq720.jpg", "/vi/bbb/hqdefault.jpg",
		"/vi/ccc/maxresdefault.jpg", "/vi/ccc/hq720.jpg",
	}, srv.RequestOrder())

	img, err := jpeg.Decode(bytes.NewReader(res.Image))
	require.NoError(t, err)
	assert.Equal(t, 720, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestResolve_SearchEmptyFetchesNothing(t *testing.T) {
	tests := []struct {
		name   string
		result process.Result
		err    error
	}{
		{"no output", process.Result{}, nil},
		{"blank lines", process.Result{Stdout: []string{"", "   "}}, nil},
		{"script failed", process.Result{}, &errors.ExitError{Tool: "cover art resolver", Code: 1, Stderr: "ModuleNotFoundError: No module named 'ytmusicapi'"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := mock_process.NewMockRunner(ctrl)
			fetcher := mock_download.NewMockFetcher(ctrl)
			runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(tt.result, tt.err)
			fetcher.EXPECT().FetchBytes(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			_, err := newTestResolver(runner, fetcher, "").Resolve(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrSearchEmpty)
		})
	}
}

func TestResolve_StartFailureIsNotSearchEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(process.Result{}, os.ErrNotExist)

	_, err := newTestResolver(runner, mock_download.NewMockFetcher(ctrl), "").Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrSearchEmpty)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolve_NonZeroExitWithCandidatesStillResolves(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	fetcher := mock_download.NewMockFetcher(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(process.Result{Stdout: []string{"vid"}}, &errors.ExitError{Tool: "resolver", Code: 220})
	fetcher.EXPECT().FetchBytes(gomock.Any(), "https://i.ytimg.com/vi/vid/maxresdefault.jpg", int64(MaxImageSize)).
		Return(testutil.JPEGBytes(t, 64, 48), nil)

	res, err := newTestResolver(runner, fetcher, "").Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "vid", res.CandidateID)
}

func TestResolve_NoValidCandidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	fetcher := mock_download.NewMockFetcher(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(resolverOutput("a", "b"))
	fetcher.EXPECT().FetchBytes(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.ErrNetwork).
		Times(6)

	_, err := newTestResolver(runner, fetcher, "").Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoValidCandidate)
	assert.ErrorIs(t, err, errors.ErrNetwork)
}

func TestResolve_CanceledBetweenCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mock_process.NewMockRunner(ctrl)
	fetcher := mock_download.NewMockFetcher(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(resolverOutput("a", "b"))
	fetcher.EXPECT().FetchBytes(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, int64) ([]byte, error) {
			cancel()
			return nil, errors.ErrNetwork
		}).
		Times(1)

	_, err := newTestResolver(runner, fetcher, "").Resolve(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchCandidateImage_FirstVariantWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_download.NewMockFetcher(ctrl)
	fetcher.EXPECT().FetchBytes(gomock.Any(), "https://img.test/vi/id1/maxresdefault.jpg", gomock.Any()).
		Return(testutil.JPEGBytes(t, 1280, 720), nil)

	img, err := newTestResolver(nil, fetcher, "https://img.test/").FetchCandidateImage(context.Background(), "id1")
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 720, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"plain id", "dQw4w9WgXcQ", "https://img.test/vi/dQw4w9WgXcQ/hqdefault.jpg"},
		{"slash and query", "a/b?c", "https://img.test/vi/a%2Fb%3Fc/hqdefault.jpg"},
		{"dot segments", "../x", "https://img.test/vi/..%2Fx/hqdefault.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImageURL("https://img.test/", tt.id, "hqdefault"))
		})
	}
}

func TestFetchCandidateImage_EscapesID(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_download.NewMockFetcher(ctrl)
	fetcher.EXPECT().FetchBytes(gomock.Any(), "https://img.test/vi/a%2Fb%3Fc/maxresdefault.jpg", gomock.Any()).
		Return(testutil.JPEGBytes(t, 64, 64), nil)

	_, err := newTestResolver(nil, fetcher, "https://img.test").FetchCandidateImage(context.Background(), "a/b?c")
	require.NoError(t, err)
}

func TestSquareRect(t *testing.T) {
	tests := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{"landscape 1280x720", image.Rect(0, 0, 1280, 720), image.Rect(280, 0, 1000, 720)},
		{"square", image.Rect(0, 0, 500, 500), image.Rect(0, 0, 500, 500)},
		{"portrait", image.Rect(0, 0, 360, 640), image.Rect(0, 140, 360, 500)},
		{"offset bounds", image.Rect(10, 10, 50, 30), image.Rect(20, 10, 40, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SquareRect(tt.in))
		})
	}
}

func TestCropToSquare_CentersCrop(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	for y := 0; y < 720; y++ {
		for x := 0; x < 1280; x++ {
			c := red
			if x >= 280 && x < 1000 {
				c = green
			}
			src.Set(x, y, c)
		}
	}

	out, err := CropToSquare(src)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 720, 720), img.Bounds())

	for _, x := range []int{4, 360, 715} {
		r, g, _, _ := img.At(x, 360).RGBA()
		assert.Greater(t, g>>8, uint32(200), "x=%d green", x)
		assert.Less(t, r>>8, uint32(60), "x=%d no red", x)
	}
}

func TestCropToSquare_Empty(t *testing.T) {
	_, err := CropToSquare(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestEnsureScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", ScriptName)

	require.NoError(t, EnsureScript(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Script(), got)
	assert.Contains(t, string(got), "ytmusicapi")

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, EnsureScript(path))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Script(), got)
}
