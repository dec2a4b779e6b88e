package hooks_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/hooks"
)

func TestAddHook_Validation(t *testing.T) {
	tests := []struct {
		name    string
		hook    hooks.Hook
		wantErr error
	}{
		{name: "valid", hook: hooks.Hook{Dependency: "yt-dlp", Type: hooks.PostInstall, Content: "// ok"}},
		{name: "empty type", hook: hooks.Hook{Dependency: "yt-dlp", Content: "x"}, wantErr: hooks.ErrHookTypeEmpty},
		{name: "unknown type", hook: hooks.Hook{Dependency: "yt-dlp", Type: "pre-remove"}, wantErr: errors.ErrHookExecution},
		{name: "no dependency", hook: hooks.Hook{Type: hooks.PostUpdate}, wantErr: hooks.ErrHookDependencyEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hooks.NewHookManager().AddHook(tt.hook)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestManager_ScopesHooksPerDependency(t *testing.T) {
	manager := hooks.NewHookManager()
	require.NoError(t, manager.AddHook(hooks.Hook{Dependency: "ffmpeg", Type: hooks.PostInstall, Content: `err := "ffmpeg hook ran"`}))

	assert.True(t, manager.HasHook("ffmpeg", hooks.PostInstall))
	assert.False(t, manager.HasHook("yt-dlp", hooks.PostInstall))
	assert.False(t, manager.HasHook("ffmpeg", hooks.PostUpdate))

	ctx := context.Background()
	assert.NoError(t, manager.Execute(ctx, hooks.PostInstall, hooks.HookContext{Dependency: "yt-dlp"}))
	assert.ErrorIs(t, manager.Execute(ctx, hooks.PostInstall, hooks.HookContext{Dependency: "ffmpeg"}), errors.ErrHookScript)

	require.NoError(t, manager.RemoveHook("ffmpeg", hooks.PostInstall))
	assert.False(t, manager.HasHook("ffmpeg", hooks.PostInstall))
	assert.NoError(t, manager.RemoveHook("unknown", hooks.PostInstall))
}

func TestLoadHooksFromDir(t *testing.T) {
	dir := t.TempDir()
	depDir := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.MkdirAll(depDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(depDir, "post-install.tengo"), []byte(`x := 1`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(depDir, "post-update.tengo"), []byte(`x := 2`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(depDir, "pre-remove.tengo"), []byte(`x := 3`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(depDir, "notes.txt"), []byte(`ignored`), 0o644))

	manager := hooks.NewHookManager()
	require.NoError(t, hooks.LoadHooksFromDir(manager, dir))

	assert.True(t, manager.HasHook("yt-dlp", hooks.PostInstall))
	assert.True(t, manager.HasHook("yt-dlp", hooks.PostUpdate))

	assert.NoError(t, hooks.LoadHooksFromDir(manager, filepath.Join(dir, "missing")))
}

func TestLoadHooksFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "probe.tengo"), []byte(`// probe`), 0o644))

	manager := hooks.NewHookManager()
	err := hooks.LoadHooksFromConfig(manager, map[string]map[string]string{
		"ffmpeg": {"post-install": "probe.tengo"},
	}, dir)
	require.NoError(t, err)
	assert.True(t, manager.HasHook("ffmpeg", hooks.PostInstall))

	err = hooks.LoadHooksFromConfig(manager, map[string]map[string]string{
		"ffmpeg": {"post-install": "missing.tengo"},
	}, dir)
	assert.ErrorIs(t, err, errors.ErrHookLoad)

	err = hooks.LoadHooksFromConfig(manager, map[string]map[string]string{
		"ffmpeg": {"pre-install": "probe.tengo"},
	}, dir)
	assert.ErrorIs(t, err, errors.ErrHookExecution)
}
