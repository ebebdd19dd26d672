package trees

import (
	"strings"

	"github.com/armon/go-radix"
)

// PathIndexStats tracks usage counters for a path index
type PathIndexStats struct {
	TotalNodes  int64
	PathLookups int64
	Insertions  int64
	Deletions   int64
}

// PathIndex is a registry of values keyed by namespace path, backed by a
// patricia tree. Iteration is always in lexical path order, which makes every
// pass over the registry reproducible. It is not safe for concurrent use.
type PathIndex[T any] struct {
	tree  *radix.Tree
	stats PathIndexStats
}

// NewPathIndex creates an empty path index
func NewPathIndex[T any]() *PathIndex[T] {
	return &PathIndex[T]{tree: radix.New()}
}

// Insert stores value under path and reports whether an existing entry was replaced
func (idx *PathIndex[T]) Insert(path string, value T) bool {
	_, updated := idx.tree.Insert(path, value)
	if !updated {
		idx.stats.TotalNodes++
	}
	idx.stats.Insertions++
	return updated
}

// Lookup finds the value stored under the exact path
func (idx *PathIndex[T]) Lookup(path string) (T, bool) {
	idx.stats.PathLookups++
	value, found := idx.tree.Get(path)
	if !found {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// Contains reports whether path is present
func (idx *PathIndex[T]) Contains(path string) bool {
	_, found := idx.tree.Get(path)
	return found
}

// Remove deletes path from the index
func (idx *PathIndex[T]) Remove(path string) bool {
	_, deleted := idx.tree.Delete(path)
	if deleted {
		idx.stats.TotalNodes--
	}
	idx.stats.Deletions++
	return deleted
}

// Len returns the number of indexed paths
func (idx *PathIndex[T]) Len() int {
	return idx.tree.Len()
}

// Walk visits every entry in lexical order until fn returns true.
// fn must not mutate the index; use Keys for mutation passes.
func (idx *PathIndex[T]) Walk(fn func(path string, value T) bool) {
	idx.tree.Walk(func(key string, value interface{}) bool {
		return fn(key, value.(T))
	})
}

// WalkSubtree visits path itself and every entry strictly below it, honouring
// segment boundaries ("/a" does not cover "/ab").
func (idx *PathIndex[T]) WalkSubtree(path string, fn func(path string, value T) bool) {
	idx.tree.WalkPrefix(path, func(key string, value interface{}) bool {
		if key != path && !strings.HasPrefix(key[len(path):], "/") {
			return false
		}
		return fn(key, value.(T))
	})
}

// Keys returns a snapshot of all indexed paths in lexical order
func (idx *PathIndex[T]) Keys() []string {
	keys := make([]string, 0, idx.tree.Len())
	idx.tree.Walk(func(key string, _ interface{}) bool {
		keys = append(keys, key)
		return false
	})
	return keys
}

// Stats returns a copy of the usage counters
func (idx *PathIndex[T]) Stats() PathIndexStats {
	return idx.stats
}

// Clear removes every entry
func (idx *PathIndex[T]) Clear() {
	idx.tree = radix.New()
	idx.stats.TotalNodes = 0
}
