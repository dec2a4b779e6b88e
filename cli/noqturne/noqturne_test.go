package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noqturne/noqturne/pkg/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "noqturne version")
}

func TestSubcommandsRegistered(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"deps", "tag", "tag-one", "download", "fetch", "fetch-all", "config", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestConfigFlag(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "settings.yaml")
	cfg := config.DefaultConfig()
	cfg.Settings.DataDir = filepath.Join(root, "data")
	require.NoError(t, cfg.SaveConfig(cfgPath))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "config", "get", "data_dir"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, filepath.Join(root, "data")+"\n", out.String())
}
