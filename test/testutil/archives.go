package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is one member of a generated archive. Entries with a trailing slash in
// Name and no Body are written as directories.
type Entry struct {
	Name     string
	Body     []byte
	Mode     int64
	Linkname string
}

func (e Entry) isDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/' && e.Body == nil
}

// ZipBytes builds a zip archive in memory.
func ZipBytes(t *testing.T, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		require.NoError(t, err)
		if !e.isDir() {
			_, err = w.Write(e.Body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// TarGzBytes builds a gzip-compressed tar archive in memory. Entries with a
// Linkname are written as symlinks.
func TarGzBytes(t *testing.T, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		mode := e.Mode
		hdr := &tar.Header{Name: e.Name}
		switch {
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
			if mode == 0 {
				mode = 0o777
			}
		case e.isDir():
			hdr.Typeflag = tar.TypeDir
			if mode == 0 {
				mode = 0o755
			}
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if mode == 0 {
				mode = 0o644
			}
		}
		hdr.Mode = mode
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write(e.Body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}
