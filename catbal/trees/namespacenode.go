package trees

import "slices"

// NodeLookup resolves namespace entries by full path
type NodeLookup interface {
	Lookup(path string) (*NamespaceNode, bool)
}

// NamespaceNode is one entry (file or directory) of the full namespace,
// independent of where catalog boundaries currently lie.
//
// Weight is a cache: it is only meaningful for plain directories and only
// right after CalculateWeight ran on the node.
type NamespaceNode struct {
	Path        string
	IsDirectory bool
	IsCatalog   bool
	Weight      int64
	Children    []string
}

// NewNamespaceNode creates an entry with a self weight of 1
func NewNamespaceNode(path string, isDirectory, isCatalog bool) *NamespaceNode {
	n := &NamespaceNode{
		Path:        path,
		IsDirectory: isDirectory,
		Weight:      1,
	}
	if isDirectory {
		n.Children = []string{}
		n.IsCatalog = isCatalog
	}
	return n
}

// IsPlainDirectory reports whether the entry is a directory that is not a catalog mountpoint
func (n *NamespaceNode) IsPlainDirectory() bool {
	return n.IsDirectory && !n.IsCatalog
}

// CalculateWeight recomputes the cached weight from the cached weights of the
// direct children. Files and mountpoints always weigh 1; a plain directory
// weighs 1 plus the full weight of each plain child directory plus 1 for every
// other child.
func (n *NamespaceNode) CalculateWeight(tree NodeLookup) int64 {
	n.Weight = 1
	if !n.IsPlainDirectory() {
		return n.Weight
	}
	for _, childPath := range n.Children {
		child, ok := tree.Lookup(childPath)
		if ok && child.IsPlainDirectory() {
			n.Weight += child.Weight
		} else {
			n.Weight++
		}
	}
	return n.Weight
}

// GetWeight returns the weight the entry contributes to its parent
func (n *NamespaceNode) GetWeight() int64 {
	if !n.IsPlainDirectory() {
		return 1
	}
	return n.Weight
}

// HasChild reports whether path is linked as a direct child
func (n *NamespaceNode) HasChild(path string) bool {
	return slices.Contains(n.Children, path)
}

// AddChild links path as a child unless it is already linked
func (n *NamespaceNode) AddChild(path string) bool {
	if n.HasChild(path) {
		return false
	}
	n.Children = append(n.Children, path)
	return true
}

// RemoveChild unlinks path, preserving the order of the remaining children
func (n *NamespaceNode) RemoveChild(path string) bool {
	idx := slices.Index(n.Children, path)
	if idx < 0 {
		return false
	}
	n.Children = slices.Delete(n.Children, idx, idx+1)
	return true
}
