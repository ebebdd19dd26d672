package balancer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/rs/zerolog"
)

// NamespacePartitioner keeps the full namespace in memory together with the
// registry of catalogs partitioning it. It computes optimal partitions and
// keeps them balanced incrementally as entries come and go.
//
// Catalogs are owned by the registry; parent/child links in the catalog tree
// are rebuilt from paths by RebuildCatalogTree. It is not safe for concurrent
// use.
type NamespacePartitioner struct {
	optimalWeight int64
	maxWeight     int64

	namespace *trees.PathIndex[*trees.NamespaceNode]
	catalogs  *trees.PathIndex[*trees.CatalogNode]
	root      *trees.CatalogNode

	markerName string
	logger     zerolog.Logger
	metrics    *trees.MetricsCollector
}

// NewNamespacePartitioner creates a partitioner with an empty namespace
func NewNamespacePartitioner(optimalWeight, maxWeight int64, opts ...Option) (*NamespacePartitioner, error) {
	if err := ValidateWeights(optimalWeight, maxWeight); err != nil {
		return nil, err
	}
	s := newSettings(opts)
	return &NamespacePartitioner{
		optimalWeight: optimalWeight,
		maxWeight:     maxWeight,
		namespace:     trees.NewPathIndex[*trees.NamespaceNode](),
		catalogs:      trees.NewPathIndex[*trees.CatalogNode](),
		markerName:    s.markerName,
		logger:        s.logger,
		metrics:       s.metrics,
	}, nil
}

func (p *NamespacePartitioner) OptimalWeight() int64 { return p.optimalWeight }

func (p *NamespacePartitioner) MaxWeight() int64 { return p.maxWeight }

// Namespace exposes the entry index. Callers must not mutate it directly.
func (p *NamespacePartitioner) Namespace() *trees.PathIndex[*trees.NamespaceNode] {
	return p.namespace
}

// Node returns the namespace entry stored at path
func (p *NamespacePartitioner) Node(path string) (*trees.NamespaceNode, bool) {
	return p.namespace.Lookup(path)
}

// Catalog returns the registered catalog mounted at path
func (p *NamespacePartitioner) Catalog(path string) (*trees.CatalogNode, bool) {
	return p.catalogs.Lookup(path)
}

// Catalogs returns the registered mount paths in lexical order
func (p *NamespacePartitioner) Catalogs() []string {
	return p.catalogs.Keys()
}

func (p *NamespacePartitioner) CatalogCount() int {
	return p.catalogs.Len()
}

// Root returns the root catalog, nil before the first root balance
func (p *NamespacePartitioner) Root() *trees.CatalogNode {
	return p.root
}

// Size returns the number of namespace entries, root included
func (p *NamespacePartitioner) Size() int {
	return p.namespace.Len()
}

// SubtreeSize counts path and every entry below it
func (p *NamespacePartitioner) SubtreeSize(path string) int {
	count := 0
	p.namespace.WalkSubtree(path, func(string, *trees.NamespaceNode) bool {
		count++
		return false
	})
	return count
}

// ContainsCatalog reports whether a catalog is mounted at path or anywhere below it
func (p *NamespacePartitioner) ContainsCatalog(path string) bool {
	found := false
	p.catalogs.WalkSubtree(path, func(string, *trees.CatalogNode) bool {
		found = true
		return true
	})
	return found
}

// Metrics returns the collector shared by this partitioner
func (p *NamespacePartitioner) Metrics() *trees.MetricsCollector {
	return p.metrics
}

// AddEntry stores an entry without touching catalog weights. Missing
// ancestors are created as plain directories and ancestors listed as files
// become directories. An existing entry keeps its children and has its flags
// updated; an entry with children stays a directory.
func (p *NamespacePartitioner) AddEntry(path string, isDirectory, isCatalog bool) *trees.NamespaceNode {
	node, ok := p.namespace.Lookup(path)
	if ok {
		node.IsDirectory = isDirectory || len(node.Children) > 0
		node.IsCatalog = node.IsDirectory && isCatalog
		if isDirectory && node.Children == nil {
			node.Children = []string{}
		}
	} else {
		node = trees.NewNamespaceNode(path, isDirectory, isCatalog)
		p.namespace.Insert(path, node)
	}
	if path != trees.RootPath {
		p.ensureDirectory(trees.ParentPath(path)).AddChild(path)
	}
	return node
}

func (p *NamespacePartitioner) ensureDirectory(path string) *trees.NamespaceNode {
	if node, ok := p.namespace.Lookup(path); ok {
		if !node.IsDirectory {
			node.IsDirectory = true
			node.Children = []string{}
		}
		return node
	}
	return p.AddEntry(path, true, false)
}

// Populate loads a seed listing into the namespace
func (p *NamespacePartitioner) Populate(entries []seed.Entry) {
	for _, e := range entries {
		p.AddEntry(trees.NormalizePath(e.Path), e.IsDirectory, e.IsCatalog)
	}
	p.logger.Debug().Int("entries", p.namespace.Len()).Msg("Namespace populated")
}

// Balance computes an optimal partition of the subtree mounted at path and
// registers the resulting catalogs, path itself included.
func (p *NamespacePartitioner) Balance(path string) error {
	node, ok := p.namespace.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, path)
	}
	if !node.IsDirectory {
		return fmt.Errorf("%w: %q", ErrNotDirectory, path)
	}

	node.IsCatalog = false
	p.OptimalPartition(node)
	if p.AddCatalog(nil, node) == nil && path == trees.RootPath {
		// the root catalog exists even when the namespace is empty
		node.IsCatalog = true
		root := trees.NewCatalogNode(trees.RootPath)
		p.catalogs.Insert(trees.RootPath, root)
	}

	root, ok := p.catalogs.Lookup(trees.RootPath)
	if !ok {
		return fmt.Errorf("%w: root catalog is not registered", ErrCatalogNotFound)
	}
	p.root = root
	p.RebuildCatalogTree()

	p.logger.Debug().
		Str("path", path).
		Int("catalogs", p.catalogs.Len()).
		Msg("Balanced subtree")
	return nil
}

// OptimalPartition recomputes weights in post-order below node and, while
// node is heavier than the maximum, mounts its heaviest plain child
// directory as a catalog. Peeling stops early when no child can lighten the
// node any further. Mountpoints flagged by the seed but not yet registered
// are partitioned as catalogs of their own.
func (p *NamespacePartitioner) OptimalPartition(node *trees.NamespaceNode) {
	for _, childPath := range node.Children {
		child, ok := p.namespace.Lookup(childPath)
		if !ok || !child.IsDirectory {
			continue
		}
		switch {
		case !child.IsCatalog:
			p.OptimalPartition(child)
		case !p.catalogs.Contains(child.Path):
			child.IsCatalog = false
			p.OptimalPartition(child)
			p.AddCatalog(nil, child)
		}
	}
	node.CalculateWeight(p.namespace)
	for node.Weight > p.maxWeight {
		heaviest := p.MaxChild(node)
		if heaviest == nil || heaviest.GetWeight() <= 1 {
			p.logger.Warn().
				Str("path", node.Path).
				Int64("weight", node.Weight).
				Int64("max_weight", p.maxWeight).
				Msg("Directory cannot be split below the maximum weight")
			return
		}
		p.AddCatalog(node, heaviest)
	}
}

// MaxChild returns the heaviest plain child directory of node. Ties go to the
// child listed first; nil when there is no plain child directory.
func (p *NamespacePartitioner) MaxChild(node *trees.NamespaceNode) *trees.NamespaceNode {
	if !node.IsPlainDirectory() {
		return nil
	}
	var heaviest *trees.NamespaceNode
	var maxWeight int64
	for _, childPath := range node.Children {
		child, ok := p.namespace.Lookup(childPath)
		if !ok || !child.IsPlainDirectory() {
			continue
		}
		if w := child.GetWeight(); w > maxWeight {
			heaviest, maxWeight = child, w
		}
	}
	return heaviest
}

// AddCatalog flags child as a mountpoint and registers a catalog for it when
// it holds at least one entry. The parent's weight is recomputed so the new
// mountpoint counts as a single entry.
func (p *NamespacePartitioner) AddCatalog(parent, child *trees.NamespaceNode) *trees.CatalogNode {
	child.IsCatalog = true
	if parent != nil {
		parent.CalculateWeight(p.namespace)
	}
	catalog := trees.NewCatalogNode(child.Path)
	catalog.Weight = child.Weight - 1
	if catalog.Weight <= 0 {
		p.metrics.IncrementOperation(trees.OpCatalogSkipped)
		return nil
	}
	p.catalogs.Insert(child.Path, catalog)
	p.metrics.IncrementOperation(trees.OpCatalogCreated)
	p.logger.Debug().Str("catalog", child.Path).Int64("weight", catalog.Weight).Msg("Catalog created")
	return catalog
}

// FindCatalog returns the mount path of the catalog owning path: its nearest
// strict ancestor that is a registered catalog, or the root path.
func (p *NamespacePartitioner) FindCatalog(path string) string {
	return trees.NearestAncestor(path, p.catalogs.Contains)
}

func (p *NamespacePartitioner) owningCatalog(path string) (*trees.CatalogNode, error) {
	catalogPath := p.FindCatalog(path)
	catalog, ok := p.catalogs.Lookup(catalogPath)
	if !ok {
		return nil, fmt.Errorf("%w: %q owning %q", ErrCatalogNotFound, catalogPath, path)
	}
	return catalog, nil
}

// RebuildCatalogTree drops every parent/child link and reattaches each
// registered catalog below its owning catalog
func (p *NamespacePartitioner) RebuildCatalogTree() {
	p.catalogs.Walk(func(_ string, c *trees.CatalogNode) bool {
		c.ClearChildren()
		return false
	})
	p.catalogs.Walk(func(path string, c *trees.CatalogNode) bool {
		if path == trees.RootPath {
			return false
		}
		if parent, ok := p.catalogs.Lookup(p.FindCatalog(path)); ok {
			parent.AddChild(c)
		}
		return false
	})
	p.metrics.IncrementOperation(trees.OpRebuild)
}

// InsertNode adds node to the namespace and charges one entry to the owning
// catalog. Missing ancestors are inserted first and charged the same way.
// Inserting an existing path changes nothing. Entries cannot be added below
// a file.
func (p *NamespacePartitioner) InsertNode(node *trees.NamespaceNode) error {
	if node.Path == trees.RootPath {
		if !p.namespace.Contains(trees.RootPath) {
			p.namespace.Insert(trees.RootPath, node)
		}
		return nil
	}
	if p.namespace.Contains(node.Path) {
		return nil
	}

	catalog, err := p.owningCatalog(node.Path)
	if err != nil {
		return err
	}

	parentPath := trees.ParentPath(node.Path)
	parent, ok := p.namespace.Lookup(parentPath)
	switch {
	case !ok:
		parent = trees.NewNamespaceNode(parentPath, true, false)
		if err := p.InsertNode(parent); err != nil {
			return err
		}
	case !parent.IsDirectory:
		return fmt.Errorf("%w: %q", ErrNotDirectory, parentPath)
	}

	parent.AddChild(node.Path)
	p.namespace.Insert(node.Path, node)
	catalog.Weight++
	p.metrics.IncrementOperation(trees.OpInsert)
	return nil
}

// DeleteNode removes the entry at path and everything below it. Each removed
// entry is charged to the catalog owning it at that moment; removing a
// registered mountpoint unregisters its catalog without folding its weight
// into the parent, since those entries are gone.
func (p *NamespacePartitioner) DeleteNode(path string) error {
	if path == trees.RootPath {
		return ErrRootNode
	}
	node, ok := p.namespace.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, path)
	}
	return p.deleteSubtree(node)
}

func (p *NamespacePartitioner) deleteSubtree(node *trees.NamespaceNode) error {
	if node.IsDirectory {
		for _, childPath := range append([]string(nil), node.Children...) {
			child, ok := p.namespace.Lookup(childPath)
			if !ok {
				node.RemoveChild(childPath)
				continue
			}
			if err := p.deleteSubtree(child); err != nil {
				return err
			}
		}
	}

	if p.catalogs.Contains(node.Path) {
		p.catalogs.Remove(node.Path)
		p.metrics.IncrementOperation(trees.OpCatalogDropped)
	} else {
		catalog, err := p.owningCatalog(node.Path)
		if err != nil {
			return err
		}
		catalog.Weight--
	}

	if parent, ok := p.namespace.Lookup(trees.ParentPath(node.Path)); ok {
		parent.RemoveChild(node.Path)
	}
	p.namespace.Remove(node.Path)
	p.metrics.IncrementOperation(trees.OpDelete)
	return nil
}

// WeakInsertion charges one entry to the catalog owning path without
// touching the namespace
func (p *NamespacePartitioner) WeakInsertion(path string) error {
	catalog, err := p.owningCatalog(path)
	if err != nil {
		return err
	}
	catalog.Weight++
	p.metrics.IncrementOperation(trees.OpWeakInsert)
	return nil
}

// WeakDeletion releases one entry from the catalog owning path without
// touching the namespace
func (p *NamespacePartitioner) WeakDeletion(path string) error {
	catalog, err := p.owningCatalog(path)
	if err != nil {
		return err
	}
	catalog.Weight--
	p.metrics.IncrementOperation(trees.OpWeakDelete)
	return nil
}

// RemoveCatalog demotes the mountpoint at path and merges its entries into
// the owning catalog, which is returned. When no owning catalog exists the
// catalog tree is rebuilt and nil is returned.
func (p *NamespacePartitioner) RemoveCatalog(path string) (*trees.CatalogNode, error) {
	if path == trees.RootPath {
		return nil, ErrRootNode
	}
	catalog, ok := p.catalogs.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCatalogNotFound, path)
	}
	if node, ok := p.namespace.Lookup(path); ok {
		node.IsCatalog = false
	}
	p.catalogs.Remove(path)

	parent, ok := p.catalogs.Lookup(p.FindCatalog(path))
	if !ok {
		p.RebuildCatalogTree()
		return nil, nil
	}
	if catalog.Weight > 0 {
		parent.Weight += catalog.Weight
	}
	p.metrics.IncrementOperation(trees.OpCatalogMerged)
	p.logger.Debug().
		Str("catalog", path).
		Str("parent", parent.Path).
		Int64("weight", catalog.Weight).
		Int64("parent_weight", parent.Weight).
		Msg("Catalog merged into parent")
	return parent, nil
}

// Rebalance merges the catalog at path into its parent when it is lighter
// than underflow, then re-checks the parent, or repartitions it when it is
// heavier than overflow. The root catalog is never merged.
func (p *NamespacePartitioner) Rebalance(underflow, overflow int64, path string) error {
	catalog, ok := p.catalogs.Lookup(path)
	if !ok {
		p.logger.Error().Str("catalog", path).Msg("Rebalance requested for unknown catalog")
		return fmt.Errorf("%w: %q", ErrCatalogNotFound, path)
	}

	switch {
	case catalog.Weight < underflow && path != trees.RootPath:
		p.logger.Info().
			Str("catalog", path).
			Int64("weight", catalog.Weight).
			Int64("underflow", underflow).
			Msg("Catalog underflow")
		parent, err := p.RemoveCatalog(path)
		if err != nil {
			return err
		}
		if parent != nil {
			return p.Rebalance(underflow, overflow, parent.Path)
		}
	case catalog.Weight > overflow:
		p.logger.Info().
			Str("catalog", path).
			Int64("weight", catalog.Weight).
			Int64("overflow", overflow).
			Msg("Catalog overflow")
		p.metrics.IncrementOperation(trees.OpCatalogSplit)
		return p.Balance(path)
	}
	return nil
}

// FullRebalance runs Rebalance over a snapshot of the registered catalogs.
// Catalogs merged away earlier in the pass are skipped and catalogs created
// during the pass are left for the next one.
func (p *NamespacePartitioner) FullRebalance(underflow, overflow int64) error {
	if err := ValidateThresholds(underflow, overflow); err != nil {
		return err
	}
	for _, path := range p.catalogs.Keys() {
		if !p.catalogs.Contains(path) {
			continue
		}
		if err := p.Rebalance(underflow, overflow, path); err != nil {
			return err
		}
	}
	return nil
}

// CreateCatalogMarkers adds a marker file entry below every non-root catalog.
// Markers are namespace bookkeeping and are not charged to any catalog.
func (p *NamespacePartitioner) CreateCatalogMarkers() {
	p.catalogs.Walk(func(path string, _ *trees.CatalogNode) bool {
		if path == trees.RootPath {
			return false
		}
		mount, ok := p.namespace.Lookup(path)
		if !ok {
			return false
		}
		markerPath := trees.JoinPath(path, p.markerName)
		if !p.namespace.Contains(markerPath) {
			p.namespace.Insert(markerPath, trees.NewNamespaceNode(markerPath, false, false))
		}
		mount.AddChild(markerPath)
		return false
	})
}

// Summary returns catalog weights in pre-order from the root catalog
func (p *NamespacePartitioner) Summary() []int64 {
	if p.root == nil {
		return nil
	}
	return p.root.Summary()
}

// SummaryAt returns catalog weights in pre-order from the catalog at path
func (p *NamespacePartitioner) SummaryAt(path string) ([]int64, error) {
	catalog, ok := p.catalogs.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCatalogNotFound, path)
	}
	return catalog.Summary(), nil
}

// Weights returns the weight of every registered catalog keyed by mount path
func (p *NamespacePartitioner) Weights() map[string]int64 {
	weights := make(map[string]int64, p.catalogs.Len())
	p.catalogs.Walk(func(path string, c *trees.CatalogNode) bool {
		weights[path] = c.Weight
		return false
	})
	return weights
}

// CountEntries attributes every non-root namespace entry to its owning
// catalog, producing the weights the registry should hold. Marker entries
// are not counted.
func (p *NamespacePartitioner) CountEntries() map[string]int64 {
	counts := make(map[string]int64, p.catalogs.Len())
	p.catalogs.Walk(func(path string, _ *trees.CatalogNode) bool {
		counts[path] = 0
		return false
	})
	markerSuffix := "/" + p.markerName
	p.namespace.Walk(func(path string, _ *trees.NamespaceNode) bool {
		if path != trees.RootPath && !strings.HasSuffix(path, markerSuffix) {
			counts[p.FindCatalog(path)]++
		}
		return false
	})
	return counts
}

// Verify checks namespace links and that registered weights match the
// entries each catalog owns. Every registered catalog must be a flagged
// directory.
func (p *NamespacePartitioner) Verify() error {
	var errs []error
	p.namespace.Walk(func(path string, _ *trees.NamespaceNode) bool {
		if path == trees.RootPath {
			return false
		}
		parent, ok := p.namespace.Lookup(trees.ParentPath(path))
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: parent of %q", ErrNodeNotFound, path))
		case !parent.IsDirectory || !parent.HasChild(path):
			errs = append(errs, fmt.Errorf("entry %q is not linked below a directory", path))
		}
		return false
	})
	counts := p.CountEntries()
	p.catalogs.Walk(func(path string, c *trees.CatalogNode) bool {
		if counts[path] != c.Weight {
			errs = append(errs, fmt.Errorf("catalog %q weighs %d but owns %d entries", path, c.Weight, counts[path]))
		}
		node, ok := p.namespace.Lookup(path)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: catalog %q has no namespace entry", ErrNodeNotFound, path))
		case !node.IsDirectory || !node.IsCatalog:
			errs = append(errs, fmt.Errorf("catalog %q is not a flagged directory", path))
		}
		return false
	})
	return errors.Join(errs...)
}

// Print renders the catalog tree
func (p *NamespacePartitioner) Print() string {
	if p.root == nil {
		return ""
	}
	return p.root.String()
}
