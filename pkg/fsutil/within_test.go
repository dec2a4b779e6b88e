package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		entry   string
		want    string
		wantErr bool
	}{
		{name: "plain file", entry: "ffmpeg.exe", want: filepath.Join(root, "ffmpeg.exe")},
		{name: "nested file", entry: "a/b/c/ffmpeg.exe", want: filepath.Join(root, "a", "b", "c", "ffmpeg.exe")},
		{name: "inner dotdot stays inside", entry: "a/../b.txt", want: filepath.Join(root, "b.txt")},
		{name: "trailing slash directory", entry: "bin/", want: filepath.Join(root, "bin")},
		{name: "parent traversal", entry: "../../evil.exe", wantErr: true},
		{name: "nested traversal", entry: "a/../../evil.exe", wantErr: true},
		{name: "bare dotdot", entry: "..", wantErr: true},
		{name: "absolute path", entry: "/etc/passwd", wantErr: true},
		{name: "empty", entry: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(root, tt.entry)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
