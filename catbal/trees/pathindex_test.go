package trees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathIndex(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"BasicInsertAndLookup", testPathIndexBasicInsertAndLookup},
		{"LexicalOrder", testPathIndexLexicalOrder},
		{"WalkSubtree", testPathIndexWalkSubtree},
		{"Remove", testPathIndexRemove},
		{"Statistics", testPathIndexStatistics},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testPathIndexBasicInsertAndLookup(t *testing.T) {
	idx := NewPathIndex[int]()

	paths := []string{"", "/a", "/a/b", "/c"}
	for i, p := range paths {
		assert.False(t, idx.Insert(p, i), "first insert of %q is not an update", p)
	}
	assert.True(t, idx.Insert("/a", 42), "second insert replaces")

	v, ok := idx.Lookup("/a")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	v, ok = idx.Lookup("")
	require.True(t, ok, "root path is a valid key")
	assert.Equal(t, 0, v)

	_, ok = idx.Lookup("/missing")
	assert.False(t, ok)
	assert.True(t, idx.Contains("/a/b"))
	assert.Equal(t, 4, idx.Len())
}

func testPathIndexLexicalOrder(t *testing.T) {
	idx := NewPathIndex[string]()
	for _, p := range []string{"/z", "/a/b", "", "/a", "/m"} {
		idx.Insert(p, p)
	}

	assert.Equal(t, []string{"", "/a", "/a/b", "/m", "/z"}, idx.Keys())

	var visited []string
	idx.Walk(func(path string, _ string) bool {
		visited = append(visited, path)
		return path == "/a/b"
	})
	assert.Equal(t, []string{"", "/a", "/a/b"}, visited, "walk stops when fn returns true")
}

func testPathIndexWalkSubtree(t *testing.T) {
	idx := NewPathIndex[struct{}]()
	for _, p := range []string{"", "/a", "/a/b", "/a/b/c", "/ab", "/ab/x", "/b"} {
		idx.Insert(p, struct{}{})
	}

	collect := func(root string) []string {
		var out []string
		idx.WalkSubtree(root, func(path string, _ struct{}) bool {
			out = append(out, path)
			return false
		})
		return out
	}

	assert.Equal(t, []string{"/a", "/a/b", "/a/b/c"}, collect("/a"), "segment boundaries are honoured")
	assert.Equal(t, []string{"/ab", "/ab/x"}, collect("/ab"))
	assert.Len(t, collect(""), 7, "the root covers everything")
	assert.Empty(t, collect("/nope"))
}

func testPathIndexRemove(t *testing.T) {
	idx := NewPathIndex[int]()
	idx.Insert("/a", 1)

	assert.True(t, idx.Remove("/a"))
	assert.False(t, idx.Remove("/a"), "second remove is a no-op")
	assert.Equal(t, 0, idx.Len())

	idx.Insert("/b", 2)
	idx.Clear()
	assert.Equal(t, 0, idx.Len())
	assert.False(t, idx.Contains("/b"))
}

func testPathIndexStatistics(t *testing.T) {
	idx := NewPathIndex[int]()
	idx.Insert("/a", 1)
	idx.Insert("/b", 2)
	idx.Insert("/a", 3)
	idx.Lookup("/a")
	idx.Lookup("/zzz")
	idx.Remove("/b")

	stats := idx.Stats()
	assert.Equal(t, int64(1), stats.TotalNodes)
	assert.Equal(t, int64(3), stats.Insertions)
	assert.Equal(t, int64(2), stats.PathLookups)
	assert.Equal(t, int64(1), stats.Deletions)
}
