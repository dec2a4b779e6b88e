package coverart

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/noqturne/noqturne/pkg/fsutil"
)

// ScriptName is the file name of the resolver script inside the data directory.
const ScriptName = "coverArt.py"

//go:embed resolver.py
var resolverScript []byte

// Script returns the embedded resolver script.
func Script() []byte { return bytes.Clone(resolverScript) }

// EnsureScript materializes the embedded resolver script at path. An existing file
// with different content is replaced.
func EnsureScript(path string) error {
	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(current, resolverScript) {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read resolver script %s: %w", path, err)
	}
	if err := fsutil.AtomicWriteFile(path, resolverScript, fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("write resolver script: %w", err)
	}
	return nil
}
