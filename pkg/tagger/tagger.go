// Package tagger writes artist, title and cover art ID3 tags into mp3 files.
package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bogem/id3v2/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/noqturne/noqturne/pkg/coverart"
	"github.com/noqturne/noqturne/pkg/errors"
)

// Extension is the only file type the tagger handles.
const Extension = ".mp3"

// CommentPrefix precedes the candidate id stored in the comment frame.
const CommentPrefix = "vId of cover art:"

const pictureMIME = "image/jpeg"

// CoverArtResolver finds cover art images.
type CoverArtResolver interface {
	Resolve(ctx context.Context, songName string) (coverart.Result, error)
	FetchCandidateImage(ctx context.Context, id string) ([]byte, error)
}

// Report describes the outcome of tagging one file.
type Report struct {
	File   string
	Song   string
	Artist string
	Title  string
	// CandidateID is empty when no cover art was attached.
	CandidateID string
	// CoverArtErr records a soft cover-art failure. The file is still tagged.
	CoverArtErr error
	// Err is set when the file could not be tagged at all.
	Err error
}

// Tagger tags mp3 files.
type Tagger struct {
	resolver CoverArtResolver
	logger   *slog.Logger
}

// New creates a Tagger.
func New(resolver CoverArtResolver, logger *slog.Logger) *Tagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{resolver: resolver, logger: logger}
}

// ListSongs returns the mp3 files directly inside dir in name order.
func ListSongs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tagging folder %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), Extension) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrNoSongFound, dir)
	}
	sort.Strings(out)
	return out, nil
}

// SongName derives the song name from an mp3 path: the base name without its
// extension, NFC-normalized.
func SongName(path string) string {
	base := filepath.Base(path)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

// SplitArtistTitle splits "Artist - Title". ok is false unless the name has
// exactly one separator.
func SplitArtistTitle(song string) (artist, title string, ok bool) {
	parts := strings.Split(song, " - ")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// TagFile tags path with artist and title from its file name and with the first
// usable cover art. Cover art failures are soft: they are logged and reported in
// Report.CoverArtErr while the file is still tagged.
func (t *Tagger) TagFile(ctx context.Context, path string) (Report, error) {
	r := t.newReport(path)
	t.logger.Info("tagging", "song", r.Song)

	var image []byte
	res, err := t.resolver.Resolve(ctx, r.Song)
	switch {
	case err == nil:
		image, r.CandidateID = res.Image, res.CandidateID
	case ctx.Err() != nil:
		r.Err = ctx.Err()
		return r, r.Err
	default:
		r.CoverArtErr = err
		t.logger.Warn("no valid cover art, skipping cover art", "song", r.Song, "error", err)
	}

	if err := t.write(r, image); err != nil {
		r.Err = err
		return r, err
	}
	return r, nil
}

// TagFileWithCandidate tags path using the thumbnail of an explicit candidate id.
// Unlike TagFile, failing to fetch the image is an error.
func (t *Tagger) TagFileWithCandidate(ctx context.Context, path, candidateID string) (Report, error) {
	r := t.newReport(path)
	image, err := t.resolver.FetchCandidateImage(ctx, candidateID)
	if err != nil {
		r.Err = fmt.Errorf("cover art %s for %s: %w", candidateID, r.Song, err)
		return r, r.Err
	}
	r.CandidateID = candidateID
	if err := t.write(r, image); err != nil {
		r.Err = err
		return r, err
	}
	return r, nil
}

// TagAll tags files, or every mp3 in dir when files is empty, running up to
// concurrency files at once. A failing file does not stop the others; their
// errors are joined. onDone, when set, is called after each file.
func (t *Tagger) TagAll(ctx context.Context, dir string, files []string, concurrency int, onDone func(Report)) ([]Report, error) {
	if len(files) == 0 {
		var err error
		if files, err = ListSongs(dir); err != nil {
			return nil, err
		}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	reports := make([]Report, len(files))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				reports[i] = Report{File: f, Song: SongName(f), Err: err}
				return nil
			}
			r, _ := t.TagFile(gctx, f)
			reports[i] = r
			if onDone != nil {
				mu.Lock()
				onDone(r)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range reports {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(r.File), r.Err))
		}
	}
	return reports, errors.Join(errs...)
}

func (t *Tagger) newReport(path string) Report {
	r := Report{File: path, Song: SongName(path)}
	if artist, title, ok := SplitArtistTitle(r.Song); ok {
		r.Artist, r.Title = artist, title
	} else {
		t.logger.Warn("could not tag artist and title, file name is not \"artist - title\"", "file", filepath.Base(path))
	}
	return r
}

// write stores the tag frames. Existing pictures and comments are replaced only
// when a new image is attached.
func (t *Tagger) write(r Report, image []byte) error {
	tag, err := id3v2.Open(r.File, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open %s: %w", r.File, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetVersion(4)
	if r.Artist != "" || r.Title != "" {
		tag.SetArtist(r.Artist)
		tag.SetTitle(r.Title)
	}
	if image != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    pictureMIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     image,
		})
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     CommentPrefix + r.CandidateID,
		})
	}
	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags of %s: %w", r.File, err)
	}
	t.logger.Debug("tags written", "file", r.File, "artist", r.Artist, "title", r.Title, "cover", r.CandidateID)
	return nil
}
