package trees

import (
	"fmt"
	"slices"
	"strings"
)

// CatalogNode is one committed catalog: a bounded partition of the namespace
// rooted at Path. Weight counts the entries owned directly by this catalog,
// excluding everything inside nested catalogs.
//
// The parent link is a path key, never an owning pointer; resolve it through
// the registry that owns the node (CatalogTree or the partitioner's registry).
type CatalogNode struct {
	Path   string
	Weight int64

	parentPath string
	hasParent  bool
	children   map[string]*CatalogNode
}

// NewCatalogNode creates a detached catalog node
func NewCatalogNode(path string) *CatalogNode {
	return &CatalogNode{
		Path:     path,
		children: make(map[string]*CatalogNode),
	}
}

// IsRoot reports whether the node has no parent catalog
func (n *CatalogNode) IsRoot() bool {
	return !n.hasParent
}

// ParentPath returns the key of the parent catalog, if attached
func (n *CatalogNode) ParentPath() (string, bool) {
	return n.parentPath, n.hasParent
}

// IsLeaf reports whether the catalog has no nested catalogs
func (n *CatalogNode) IsLeaf() bool {
	return len(n.children) == 0
}

// ChildCount returns the number of direct nested catalogs
func (n *CatalogNode) ChildCount() int {
	return len(n.children)
}

// Child returns the nested catalog mounted at path
func (n *CatalogNode) Child(path string) (*CatalogNode, bool) {
	child, ok := n.children[path]
	return child, ok
}

// AddChild attaches child below n, replacing any catalog already mounted at the same path
func (n *CatalogNode) AddChild(child *CatalogNode) *CatalogNode {
	child.parentPath = n.Path
	child.hasParent = true
	n.children[child.Path] = child
	return child
}

// NewChild creates a catalog at path and attaches it below n
func (n *CatalogNode) NewChild(path string) *CatalogNode {
	return n.AddChild(NewCatalogNode(path))
}

// RemoveChild detaches the catalog mounted at path and folds every entry of
// its subtree back into n. The detached node is returned with its own
// subtree intact so callers can clean up after it.
func (n *CatalogNode) RemoveChild(path string) (*CatalogNode, bool) {
	child, ok := n.children[path]
	if !ok {
		return nil, false
	}
	delete(n.children, path)
	n.Weight += child.TotalEntries()
	child.hasParent = false
	child.parentPath = ""
	return child, true
}

// ClearChildren drops every edge below n. Detached children keep their weight.
func (n *CatalogNode) ClearChildren() {
	for _, child := range n.children {
		child.hasParent = false
		child.parentPath = ""
	}
	clear(n.children)
}

// Children returns the nested catalogs sorted by mount path
func (n *CatalogNode) Children() []*CatalogNode {
	out := make([]*CatalogNode, 0, len(n.children))
	for _, child := range n.children {
		out = append(out, child)
	}
	slices.SortFunc(out, func(a, b *CatalogNode) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// TotalEntries returns the number of entries held by n and all nested catalogs
func (n *CatalogNode) TotalEntries() int64 {
	entries := n.Weight
	for _, child := range n.children {
		entries += child.TotalEntries()
	}
	return entries
}

// Walk visits n and its nested catalogs in pre-order, children sorted by path.
// Returning false from fn prunes the subtree below the visited node.
func (n *CatalogNode) Walk(fn func(node *CatalogNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *CatalogNode) walk(fn func(node *CatalogNode, depth int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children() {
		child.walk(fn, depth+1)
	}
}

// Summary returns the weight of every catalog in the subtree, pre-order
func (n *CatalogNode) Summary() []int64 {
	var weights []int64
	n.Walk(func(node *CatalogNode, _ int) bool {
		weights = append(weights, node.Weight)
		return true
	})
	return weights
}

// String renders the subtree one catalog per line, indented by depth
func (n *CatalogNode) String() string {
	var sb strings.Builder
	n.Walk(func(node *CatalogNode, depth int) bool {
		fmt.Fprintf(&sb, "%s%s - %d\n", strings.Repeat(" ", depth), node.Path, node.Weight)
		return true
	})
	return sb.String()
}

// CatalogTree owns a set of catalog nodes keyed by mount path. Parent links
// between nodes are resolved through the tree.
type CatalogTree struct {
	root  *CatalogNode
	nodes *PathIndex[*CatalogNode]
}

// NewCatalogTree creates a tree holding only the root catalog
func NewCatalogTree() *CatalogTree {
	root := NewCatalogNode(RootPath)
	nodes := NewPathIndex[*CatalogNode]()
	nodes.Insert(RootPath, root)
	return &CatalogTree{root: root, nodes: nodes}
}

// Root returns the root catalog
func (t *CatalogTree) Root() *CatalogNode {
	return t.root
}

// Node looks up a catalog by mount path
func (t *CatalogTree) Node(path string) (*CatalogNode, bool) {
	return t.nodes.Lookup(path)
}

// Parent resolves the parent catalog of n
func (t *CatalogTree) Parent(n *CatalogNode) (*CatalogNode, bool) {
	parentPath, ok := n.ParentPath()
	if !ok {
		return nil, false
	}
	return t.nodes.Lookup(parentPath)
}

// Attach creates a catalog at path below parent and registers it
func (t *CatalogTree) Attach(parent *CatalogNode, path string) *CatalogNode {
	child := parent.NewChild(path)
	t.nodes.Insert(path, child)
	return child
}

// Dissolve merges n into its parent and unregisters n together with any
// catalogs nested below it. It returns the mount paths that stopped being catalogs.
func (t *CatalogTree) Dissolve(n *CatalogNode) ([]string, error) {
	parent, ok := t.Parent(n)
	if !ok {
		return nil, fmt.Errorf("catalog %q has no parent to merge into", n.Path)
	}
	removed, _ := parent.RemoveChild(n.Path)
	var paths []string
	removed.Walk(func(node *CatalogNode, _ int) bool {
		t.nodes.Remove(node.Path)
		paths = append(paths, node.Path)
		return true
	})
	return paths, nil
}

// Len returns the number of catalogs, root included
func (t *CatalogTree) Len() int {
	return t.nodes.Len()
}

// Reset dissolves every catalog below the root and zeroes the root weight
func (t *CatalogTree) Reset() []string {
	var removed []string
	for _, child := range t.root.Children() {
		paths, _ := t.Dissolve(child)
		removed = append(removed, paths...)
	}
	t.root.Weight = 0
	return removed
}
