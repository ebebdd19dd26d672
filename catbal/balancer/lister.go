package balancer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/spf13/afero"
)

// Entry is one child returned by a Lister
type Entry struct {
	Path        string
	IsDirectory bool
}

// Lister enumerates the direct children of a namespace directory. It is the
// capability the greedy partitioner needs from a backend: real directories
// and the in-memory namespace both implement it.
type Lister interface {
	List(path string) ([]Entry, error)
}

// FSLister lists a real directory tree through afero. Listings are sorted by
// name, so the partition produced for a given tree is reproducible.
type FSLister struct {
	fs     afero.Fs
	root   string
	skipFn func(name string) bool
}

// NewFSLister lists the tree rooted at root. Entries named like one of
// skipNames (typically the catalog marker) are not reported.
func NewFSLister(fs afero.Fs, root string, skipNames ...string) *FSLister {
	skip := make(map[string]struct{}, len(skipNames))
	for _, name := range skipNames {
		skip[name] = struct{}{}
	}
	return &FSLister{
		fs:   fs,
		root: root,
		skipFn: func(name string) bool {
			_, ok := skip[name]
			return ok
		},
	}
}

// AbsolutePath maps a namespace path onto the backing filesystem
func (l *FSLister) AbsolutePath(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// NamespacePath maps a location on the backing filesystem back onto the
// namespace
func (l *FSLister) NamespacePath(name string) (string, error) {
	rel, err := filepath.Rel(l.root, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of %s", name, l.root)
	}
	return trees.NormalizePath(filepath.ToSlash(rel)), nil
}

// List returns the children of path, sorted by name
func (l *FSLister) List(path string) ([]Entry, error) {
	infos, err := afero.ReadDir(l.fs, l.AbsolutePath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", l.AbsolutePath(path), err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if l.skipFn(info.Name()) {
			continue
		}
		entries = append(entries, Entry{
			Path:        trees.JoinPath(path, info.Name()),
			IsDirectory: info.IsDir(),
		})
	}
	return entries, nil
}

// VirtualLister lists the in-memory namespace in child insertion order
type VirtualLister struct {
	tree trees.NodeLookup
}

// NewVirtualLister lists entries held by tree
func NewVirtualLister(tree trees.NodeLookup) *VirtualLister {
	return &VirtualLister{tree: tree}
}

// List returns the children of path
func (l *VirtualLister) List(path string) ([]Entry, error) {
	node, ok := l.tree.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, path)
	}
	entries := make([]Entry, 0, len(node.Children))
	for _, childPath := range node.Children {
		child, ok := l.tree.Lookup(childPath)
		if !ok {
			return nil, fmt.Errorf("%w: %q listed by %q", ErrNodeNotFound, childPath, path)
		}
		entries = append(entries, Entry{Path: childPath, IsDirectory: child.IsDirectory})
	}
	return entries, nil
}
