package hooks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/hooks"
)

func TestTengoExecutor(t *testing.T) {
	executor := hooks.NewTengoExecutor()
	hctx := hooks.HookContext{
		Dependency: "ffmpeg",
		Version:    "7.1",
		Path:       "/data/bin/ffmpeg",
		BinDir:     "/data/bin",
		Platform:   "linux/amd64",
		Vars: map[string]interface{}{
			"customVar": "customValue",
		},
	}
	ctx := context.Background()

	t.Run("empty script succeeds", func(t *testing.T) {
		executor.AddScript(hooks.PostInstall, `// nothing to do`)
		assert.NoError(t, executor.Execute(ctx, hooks.PostInstall, hctx))
	})

	t.Run("runtime error", func(t *testing.T) {
		executor.AddScript(hooks.PostUpdate, `non_existent_function()`)
		err := executor.Execute(ctx, hooks.PostUpdate, hctx)
		assert.ErrorIs(t, err, errors.ErrHookExecution)
	})

	t.Run("missing script is a no-op", func(t *testing.T) {
		assert.NoError(t, executor.Execute(ctx, "non-existent-hook", hctx))
	})

	t.Run("HasScript and RemoveScript", func(t *testing.T) {
		hookType := hooks.HookType("test-hook")
		assert.False(t, executor.HasScript(hookType))
		executor.AddScript(hookType, "// test script")
		assert.True(t, executor.HasScript(hookType))
		executor.RemoveScript(hookType)
		assert.False(t, executor.HasScript(hookType))
	})

	t.Run("context variables are accessible", func(t *testing.T) {
		executor.AddScript(hooks.PostInstall, `
text := import("text")
ok := dependency == "ffmpeg" && text.has_suffix(path, "/ffmpeg") && binDir != "" && customVar == "customValue"
err := ok ? "" : "unexpected context"`)
		assert.NoError(t, executor.Execute(ctx, hooks.PostInstall, hctx))
	})

	t.Run("script reports failure through err", func(t *testing.T) {
		executor.AddScript(hooks.PostInstall, `err := "codec check failed for " + dependency`)
		err := executor.Execute(ctx, hooks.PostInstall, hctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrHookScript)
		assert.Contains(t, err.Error(), "codec check failed for ffmpeg")
	})

	t.Run("context cancellation stops the script", func(t *testing.T) {
		executor.AddScript(hooks.PostUpdate, `for { }`)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := executor.Execute(ctx, hooks.PostUpdate, hctx)
		assert.ErrorIs(t, err, errors.ErrHookExecution)
	})
}
