package seed

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func TestFromDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/.catbalignore":     "build\n*.log\n",
		"/repo/.cvmfscatalog":     "",
		"/repo/README":            "hello",
		"/repo/build/out.bin":     "",
		"/repo/src/.cvmfscatalog": "",
		"/repo/src/debug.log":     "",
		"/repo/src/main.go":       "package main",
	})

	entries, err := FromDirectory(fs, "/repo", Options{MarkerName: ".cvmfscatalog", IgnoreFile: ".catbalignore"})
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Path: "", IsDirectory: true},
		{Path: "/README"},
		{Path: "/src", IsDirectory: true, IsCatalog: true},
		{Path: "/src/main.go"},
	}, entries)
}

func TestFromDirectoryWithoutIgnoreFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/a/b/c": "",
	})

	entries, err := FromDirectory(fs, "/repo", Options{MarkerName: ".cvmfscatalog", IgnoreFile: ".catbalignore"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Path: "", IsDirectory: true},
		{Path: "/a", IsDirectory: true},
		{Path: "/a/b", IsDirectory: true},
		{Path: "/a/b/c"},
	}, entries, "parents precede children")

	_, err = FromDirectory(fs, "/missing", Options{})
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	entries := []Entry{
		{Path: "", IsDirectory: true},
		{Path: "/a", IsDirectory: true, IsCatalog: true},
		{Path: "/a/f"},
	}
	revisions := []Revision{
		{Deletions: []string{"/a/f"}, Additions: []Entry{{Path: "/b", IsDirectory: true}}},
	}
	snap := NewSnapshot("/repo", entries, revisions...)

	path := filepath.Join(t.TempDir(), "namespace.msgpack")
	require.NoError(t, Dump(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, loaded.Version)
	assert.Equal(t, "/repo", loaded.Source)
	assert.Equal(t, entries, loaded.Entries)
	assert.Equal(t, revisions, loaded.Revisions)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	snap := NewSnapshot("x", nil)
	snap.Version = SnapshotVersion + 1
	require.NoError(t, Write(&buf, snap))

	_, err := Read(&buf)
	assert.ErrorContains(t, err, "unsupported snapshot version")

	_, err = Read(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}
