package hooks

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/noqturne/noqturne/pkg/errors"
)

// HookFileExtension is the extension of hook scripts on disk.
const HookFileExtension = ".tengo"

// LoadHooksFromDir loads scripts laid out as <dir>/<dependency>/<hook-type>.tengo.
// A missing dir is not an error.
func LoadHooksFromDir(manager HookManager, dir string) error {
	deps, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(errors.ErrHookLoad, "read hooks directory %s: %v", dir, err)
	}

	for _, dep := range deps {
		if !dep.IsDir() {
			continue
		}
		depDir := filepath.Join(dir, dep.Name())
		entries, err := os.ReadDir(depDir)
		if err != nil {
			return errors.Wrapf(errors.ErrHookLoad, "read hooks directory %s: %v", depDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != HookFileExtension {
				continue
			}
			hookType := HookType(strings.TrimSuffix(entry.Name(), HookFileExtension))
			if !hookType.Valid() {
				continue
			}
			if err := addHookFile(manager, dep.Name(), hookType, filepath.Join(depDir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadHooksFromConfig registers the scripts named in a dependency -> hook type ->
// script path table. Relative paths are resolved against baseDir.
func LoadHooksFromConfig(manager HookManager, table map[string]map[string]string, baseDir string) error {
	for dep, byType := range table {
		for typ, scriptPath := range byType {
			hookType := HookType(typ)
			if !hookType.Valid() {
				return ErrUnsupportedHookEvent(typ)
			}
			if !filepath.IsAbs(scriptPath) {
				scriptPath = filepath.Join(baseDir, scriptPath)
			}
			if err := addHookFile(manager, dep, hookType, scriptPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func addHookFile(manager HookManager, dep string, hookType HookType, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ErrHookLoad, "error reading hooks file %s: %v", path, err)
	}
	if err := manager.AddHook(Hook{Dependency: dep, Type: hookType, Content: string(content)}); err != nil {
		return errors.Wrapf(err, "error adding hook %s/%s", dep, hookType)
	}
	return nil
}
