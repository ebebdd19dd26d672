package trees

import (
	"path"
	"strings"
)

// RootPath is the key of the namespace root and of the root catalog
const RootPath = ""

// ParentPath returns the path one segment above p. Top-level entries and
// paths without a separator have the root as parent.
func ParentPath(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return RootPath
	}
	return p[:idx]
}

// NearestAncestor walks p upward one segment at a time and returns the first
// strict ancestor accepted by has, or the root path when none is.
func NearestAncestor(p string, has func(string) bool) string {
	current := p
	for current != RootPath {
		current = ParentPath(current)
		if has(current) {
			return current
		}
	}
	return current
}

// JoinPath appends a single segment to a namespace path
func JoinPath(dir, name string) string {
	return dir + "/" + name
}

// NormalizePath converts an arbitrary slash path into namespace form:
// leading slash, no trailing slash, no dot segments, root as "".
func NormalizePath(p string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if cleaned == "/" {
		return RootPath
	}
	return cleaned
}

// Depth returns the number of segments in p
func Depth(p string) int {
	return strings.Count(p, "/")
}

// IsWithin reports whether p equals dir or lies below it
func IsWithin(p, dir string) bool {
	if dir == RootPath {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
