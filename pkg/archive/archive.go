// Package archive installs tool build archives: it streams an archive into a scratch
// directory, moves the wanted executables out of it and removes the leftovers.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
)

// chunkSize is the copy buffer size for extracted files.
const chunkSize = 32 * 1024

// Manager handles archive extraction and installation.
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a new Manager instance.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Extract streams every entry of archivePath into destDir, preserving the relative
// structure. Entries that would land outside destDir fail the whole extraction with
// ErrPathEscapesRoot.
func (am *Manager) Extract(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open archive: %w", errors.ErrInstall, err)
	}
	defer func() { _ = f.Close() }()

	format, stream, err := archives.Identify(ctx, filepath.Base(archivePath), f)
	if err != nil {
		return fmt.Errorf("%w: identify %s: %w", errors.ErrInstall, archivePath, err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%w: %s is not an extractable archive (%s)", errors.ErrInstall, archivePath, format.Extension())
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %w", errors.ErrInstall, destDir, err)
	}
	if err := fsutil.EnsureDir(absDest); err != nil {
		return fmt.Errorf("%w: failed to create destination directory: %w", errors.ErrInstall, err)
	}
	x, err := openExtraction(absDest)
	if err != nil {
		return err
	}
	defer func() { _ = x.root.Close() }()

	entries := 0
	err = extractor.Extract(ctx, stream, func(ctx context.Context, info archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries++
		return x.extractEntry(info)
	})
	if err != nil {
		if errors.Is(err, errors.ErrInstall) {
			return err
		}
		return fmt.Errorf("%w: extract %s: %w", errors.ErrInstall, archivePath, err)
	}
	am.logger.Debug("archive extracted", "archive", archivePath, "dest", absDest, "entries", entries)
	return nil
}

// extraction writes entries below one destination directory. Every write goes
// through root, which refuses paths that leave the directory, including paths
// that leave it through symlinks created by earlier entries.
type extraction struct {
	dir  string
	real string
	root *os.Root
}

func openExtraction(dir string) (*extraction, error) {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", errors.ErrInstall, dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", errors.ErrInstall, dir, err)
	}
	return &extraction{dir: dir, real: real, root: root}, nil
}

// extractEntry writes a single archive entry.
func (x *extraction) extractEntry(info archives.FileInfo) error {
	name := info.NameInArchive
	targetPath, err := fsutil.ResolveWithin(x.dir, name)
	if err != nil {
		return escapeError(name, "")
	}
	if targetPath == x.dir {
		return nil
	}
	rel, err := filepath.Rel(x.dir, targetPath)
	if err != nil {
		return escapeError(name, "")
	}
	if err := x.checkParent(name, targetPath); err != nil {
		return err
	}

	switch {
	case info.IsDir():
		if err := x.root.MkdirAll(rel, fsutil.DirModeDefault); err != nil {
			return fmt.Errorf("%w: create directory %s: %w", errors.ErrInstall, name, err)
		}
		return nil
	case info.Mode()&fs.ModeSymlink != 0:
		return x.writeSymlink(name, rel, info.LinkTarget)
	case info.LinkTarget != "":
		return x.writeHardlink(name, rel, info.LinkTarget)
	default:
		return x.writeRegularFile(name, rel, info)
	}
}

// checkParent verifies that the directory holding targetPath, with symlinks
// resolved, is still inside the destination.
func (x *extraction) checkParent(name, targetPath string) error {
	real, err := x.realPath(filepath.Dir(targetPath))
	if err != nil {
		return fmt.Errorf("%w: resolve parent of %s: %w", errors.ErrInstall, name, err)
	}
	if !isWithin(x.real, real) {
		return escapeError(name, "")
	}
	return nil
}

// realPath resolves symlinks in the nearest existing ancestor of p and appends
// the components that do not exist yet.
func (x *extraction) realPath(p string) (string, error) {
	var missing []string
	dir := p
	for {
		real, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				real = filepath.Join(real, missing[i])
			}
			return real, nil
		}
		if !os.IsNotExist(err) || dir == x.dir || dir == filepath.Dir(dir) {
			return "", err
		}
		missing = append(missing, filepath.Base(dir))
		dir = filepath.Dir(dir)
	}
}

func (x *extraction) ensureParent(name, rel string) error {
	parent := filepath.Dir(rel)
	if parent == "." {
		return nil
	}
	if err := x.root.MkdirAll(parent, fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("%w: failed to create parent directory for %s: %w", errors.ErrInstall, name, err)
	}
	return nil
}

// writeSymlink creates a symlink whose target, resolved from the real location of
// its parent directory, stays inside the destination.
func (x *extraction) writeSymlink(name, rel, linkTarget string) error {
	if linkTarget == "" || filepath.IsAbs(linkTarget) || filepath.VolumeName(linkTarget) != "" {
		return escapeError(name, linkTarget)
	}
	realParent, err := x.realPath(filepath.Join(x.dir, filepath.Dir(rel)))
	if err != nil {
		return fmt.Errorf("%w: resolve parent of %s: %w", errors.ErrInstall, name, err)
	}
	if !isWithin(x.real, filepath.Join(realParent, filepath.FromSlash(linkTarget))) {
		return escapeError(name, linkTarget)
	}
	if err := x.ensureParent(name, rel); err != nil {
		return err
	}

	_ = x.root.Remove(rel)
	if err := x.root.Symlink(linkTarget, rel); err != nil {
		return fmt.Errorf("%w: create symlink %s: %w", errors.ErrInstall, name, err)
	}
	return nil
}

// writeHardlink links rel to an already extracted entry.
func (x *extraction) writeHardlink(name, rel, linkTarget string) error {
	source, err := fsutil.ResolveWithin(x.dir, linkTarget)
	if err != nil {
		return escapeError(name, linkTarget)
	}
	sourceRel, err := filepath.Rel(x.dir, source)
	if err != nil {
		return escapeError(name, linkTarget)
	}
	if err := x.ensureParent(name, rel); err != nil {
		return err
	}
	_ = x.root.Remove(rel)
	if err := x.root.Link(sourceRel, rel); err != nil {
		// Some filesystems refuse hard links; a copy is equivalent for executables.
		if cerr := x.copyEntry(sourceRel, rel); cerr != nil {
			return fmt.Errorf("%w: link %s: %w", errors.ErrInstall, name, err)
		}
	}
	return nil
}

func (x *extraction) copyEntry(srcRel, dstRel string) error {
	src, err := x.root.Open(srcRel)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	dst, err := x.root.OpenFile(dstRel, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.CopyBuffer(dst, src, make([]byte, chunkSize)); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// writeRegularFile copies an archive entry to rel in fixed-size chunks.
func (x *extraction) writeRegularFile(name, rel string, info archives.FileInfo) error {
	src, err := info.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open entry %s: %w", errors.ErrInstall, name, err)
	}
	defer func() { _ = src.Close() }()

	if err := x.ensureParent(name, rel); err != nil {
		return err
	}

	perm := info.Mode().Perm() | 0o600
	dst, err := x.root.OpenFile(rel, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w: failed to create destination file %s: %w", errors.ErrInstall, name, err)
	}
	if _, err := io.CopyBuffer(dst, src, make([]byte, chunkSize)); err != nil {
		_ = dst.Close()
		return fmt.Errorf("%w: failed to copy %s: %w", errors.ErrInstall, name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", errors.ErrInstall, name, err)
	}
	if err := x.root.Chmod(rel, perm); err != nil {
		return fmt.Errorf("%w: failed to set permissions for %s: %w", errors.ErrInstall, name, err)
	}
	return nil
}

func escapeError(name, linkTarget string) error {
	if linkTarget != "" {
		return fmt.Errorf("%w: %w: %q -> %q", errors.ErrInstall, errors.ErrPathEscapesRoot, name, linkTarget)
	}
	return fmt.Errorf("%w: %w: %q", errors.ErrInstall, errors.ErrPathEscapesRoot, name)
}

func isWithin(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
