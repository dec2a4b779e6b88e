package archive

import (
	"context"
	"os"
	"runtime"

	"github.com/noqturne/noqturne/pkg/errors"
)

// Relocation names one file to pull out of an extracted archive.
type Relocation struct {
	// Name is the base name searched for anywhere in the extracted tree.
	Name string
	// Dest is the final path of the file.
	Dest string
	// Mode, when non-zero, is applied to Dest after the move on non-Windows hosts.
	Mode os.FileMode
}

// Install extracts archivePath into scratchDir, relocates every requested file and
// finally removes both the archive and scratchDir, whether or not the install succeeded.
func (am *Manager) Install(ctx context.Context, archivePath, scratchDir string, relocations []Relocation) error {
	defer am.Cleanup(archivePath, scratchDir)

	if err := am.Extract(ctx, archivePath, scratchDir); err != nil {
		return err
	}
	for _, r := range relocations {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "install interrupted")
		}
		if err := am.LocateAndRelocate(r.Name, scratchDir, r.Dest); err != nil {
			return err
		}
		if r.Mode != 0 && runtime.GOOS != "windows" {
			if err := os.Chmod(r.Dest, r.Mode); err != nil {
				return errors.Wrapf(errors.ErrInstall, "chmod %s: %v", r.Dest, err)
			}
		}
	}
	return nil
}

// Cleanup removes the downloaded archive and the scratch directory. Failures are
// logged and otherwise ignored.
func (am *Manager) Cleanup(archivePath, extractedDir string) {
	if archivePath != "" {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			am.logger.Warn("could not remove archive", "path", archivePath, "error", err)
		}
	}
	if extractedDir != "" {
		if err := os.RemoveAll(extractedDir); err != nil {
			am.logger.Warn("could not remove scratch directory", "path", extractedDir, "error", err)
		}
	}
}
