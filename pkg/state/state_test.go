package state

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noqturne/noqturne/pkg/errors"
)

func TestStore_MissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "config.txt")
	s := NewStore(path, map[string]string{KeyTaggingFolder: "/home/u/Downloads"})

	dir, err := s.TaggingFolder()
	require.NoError(t, err)
	assert.Equal(t, "/home/u/Downloads", dir)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TAGGING_FOLDER=/home/u/Downloads\n", string(data))
}

func TestStore_AbsentKeyIsSynthesizedAndPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("OTHER=1\n"), 0o644))

	s := NewStore(path, map[string]string{KeyTaggingFolder: "/music"})
	dir, err := s.TaggingFolder()
	require.NoError(t, err)
	assert.Equal(t, "/music", dir)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "OTHER=1\nTAGGING_FOLDER=/music\n", string(data))

	_, err = s.Get("NO_DEFAULT")
	assert.ErrorIs(t, err, errors.ErrUnknownConfigKey)
}

func TestStore_SetPreservesUnknownKeysAndOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("Z_KEY=z\nTAGGING_FOLDER=/old\nA_KEY=a=b\n"), 0o644))

	s := NewStore(path, nil)
	require.NoError(t, s.SetTaggingFolder("/new folder"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Z_KEY=z\nTAGGING_FOLDER=/new folder\nA_KEY=a=b\n", string(data))

	fresh := NewStore(path, nil)
	all, err := fresh.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Z_KEY": "z", KeyTaggingFolder: "/new folder", "A_KEY": "a=b"}, all)
}

func TestStore_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("TAGGING_FOLDER=/x\nthis line has no separator\n"), 0o644))

	_, err := NewStore(path, nil).TaggingFolder()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedState)
	assert.Contains(t, err.Error(), "line 2")
}

func TestStore_BlankLinesAndCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("\r\nTAGGING_FOLDER=C:\\Users\\u\\Downloads\r\n\n"), 0o644))

	dir, err := NewStore(path, nil).TaggingFolder()
	require.NoError(t, err)
	assert.Equal(t, `C:\Users\u\Downloads`, dir)
}

func TestStore_RejectsInvalidEntries(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.txt"), nil)
	assert.Error(t, s.Set("", "x"))
	assert.Error(t, s.Set("A=B", "x"))
	assert.Error(t, s.Set("KEY", "two\nlines"))
}

func TestStore_ConcurrentSets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	s := NewStore(path, map[string]string{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(string(rune('A'+i)), "v"))
		}(i)
	}
	wg.Wait()

	all, err := NewStore(path, map[string]string{}).All()
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
