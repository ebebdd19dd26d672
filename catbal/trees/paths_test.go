package trees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParentPath(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/a/b/c", "/a/b"},
		{"/a", ""},
		{"", ""},
		{"a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ParentPath(tt.path))
		})
	}
}

func TestNearestAncestor(t *testing.T) {
	catalogs := map[string]bool{"": true, "/a": true, "/a/b/c": true}
	has := func(p string) bool { return catalogs[p] }

	assert.Equal(t, "/a/b/c", NearestAncestor("/a/b/c/d", has))
	assert.Equal(t, "/a", NearestAncestor("/a/b/c", has), "a path is never its own ancestor")
	assert.Equal(t, "/a", NearestAncestor("/a/b", has))
	assert.Equal(t, "", NearestAncestor("/a", has))
	assert.Equal(t, "", NearestAncestor("/x/y", has))
	assert.Equal(t, "", NearestAncestor("", has))
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"/":         "",
		".":         "",
		"a/b":       "/a/b",
		"/a/b/":     "/a/b",
		"/a/./b/..": "/a",
		`a\b`:       "/a/b",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), "NormalizePath(%q)", in)
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))
	assert.Equal(t, "/b", JoinPath("", "b"))

	assert.Equal(t, 0, Depth(""))
	assert.Equal(t, 3, Depth("/a/b/c"))

	assert.True(t, IsWithin("/a/b", "/a"))
	assert.True(t, IsWithin("/a", "/a"))
	assert.True(t, IsWithin("/anything", ""))
	assert.False(t, IsWithin("/ab", "/a"))
}
