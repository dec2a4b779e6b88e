package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned by ResolveWithin when name would resolve outside root.
var ErrOutsideRoot = fmt.Errorf("path resolves outside root")

// ResolveWithin joins an archive-relative name onto root and verifies that the result
// stays inside root. Absolute names, volume names and ".." segments that climb above
// root are rejected.
func ResolveWithin(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrOutsideRoot)
	}
	slashed := filepath.ToSlash(name)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	target := filepath.Join(absRoot, filepath.FromSlash(slashed))

	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	return target, nil
}
