package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
)

// Locate returns the first regular file named fileName below searchRoot. The walk is
// an explicit-stack depth-first search with entries visited in lexical order.
func Locate(fileName, searchRoot string) (string, error) {
	stack := []string{searchRoot}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", errors.ErrInstall, dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		var subdirs []string
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			switch {
			case e.Type().IsRegular() && e.Name() == fileName:
				return full, nil
			case e.IsDir():
				subdirs = append(subdirs, full)
			}
		}
		// Push in reverse so the lexically first subdirectory is visited next.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return "", fmt.Errorf("%w: %w: %s under %s", errors.ErrInstall, errors.ErrFileNotFound, fileName, searchRoot)
}

// LocateAndRelocate finds fileName below searchRoot and moves it to destPath,
// replacing any existing file there.
func (am *Manager) LocateAndRelocate(fileName, searchRoot, destPath string) error {
	found, err := Locate(fileName, searchRoot)
	if err != nil {
		return err
	}
	if err := fsutil.Move(found, destPath); err != nil {
		return fmt.Errorf("%w: relocate %s: %w", errors.ErrInstall, fileName, err)
	}
	am.logger.Debug("relocated file", "from", found, "to", destPath)
	return nil
}
