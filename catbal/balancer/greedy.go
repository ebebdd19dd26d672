package balancer

import (
	"fmt"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/rs/zerolog"
)

// GreedyPartitioner builds a catalog tree top-down in a single pass over a
// Lister. A directory is folded into the current catalog until that catalog
// reaches the optimal weight; from then on every subdirectory gets a catalog
// of its own.
type GreedyPartitioner struct {
	lister        Lister
	tree          *trees.CatalogTree
	optimalWeight int64
	maxWeight     int64
	logger        zerolog.Logger
	metrics       *trees.MetricsCollector
}

// NewGreedyPartitioner creates a partitioner reading the namespace from lister
func NewGreedyPartitioner(lister Lister, optimalWeight, maxWeight int64, opts ...Option) (*GreedyPartitioner, error) {
	if err := ValidateWeights(optimalWeight, maxWeight); err != nil {
		return nil, err
	}
	s := newSettings(opts)
	return &GreedyPartitioner{
		lister:        lister,
		tree:          trees.NewCatalogTree(),
		optimalWeight: optimalWeight,
		maxWeight:     maxWeight,
		logger:        s.logger,
		metrics:       s.metrics,
	}, nil
}

// Tree returns the catalog tree built by the last Partition call
func (g *GreedyPartitioner) Tree() *trees.CatalogTree {
	return g.tree
}

// Root returns the root catalog
func (g *GreedyPartitioner) Root() *trees.CatalogNode {
	return g.tree.Root()
}

// Summary returns the catalog weights in pre-order
func (g *GreedyPartitioner) Summary() []int64 {
	return g.tree.Root().Summary()
}

// Partition discards any previous result, walks the namespace from the root
// and cuts undersized leaves. It returns the mount paths dissolved by the cut.
func (g *GreedyPartitioner) Partition() ([]string, error) {
	g.tree = trees.NewCatalogTree()
	if err := g.addSubtree(g.tree.Root(), trees.RootPath); err != nil {
		return nil, err
	}
	g.logger.Debug().
		Int("catalogs", g.tree.Len()).
		Int64("optimal_weight", g.optimalWeight).
		Msg("Greedy partition complete")
	return g.CutLeaves(), nil
}

func (g *GreedyPartitioner) partitionCatalog(node *trees.CatalogNode) error {
	return g.addSubtree(node, node.Path)
}

func (g *GreedyPartitioner) addSubtree(node *trees.CatalogNode, path string) error {
	entries, err := g.lister.List(path)
	if err != nil {
		return err
	}
	node.Weight += int64(len(entries))
	for _, entry := range entries {
		if !entry.IsDirectory {
			continue
		}
		if node.Weight < g.optimalWeight {
			if err := g.addSubtree(node, entry.Path); err != nil {
				return err
			}
			continue
		}
		child := g.tree.Attach(node, entry.Path)
		g.metrics.IncrementOperation(trees.OpCatalogCreated)
		if err := g.partitionCatalog(child); err != nil {
			return fmt.Errorf("failed to partition catalog %s: %w", entry.Path, err)
		}
	}
	return nil
}

// CutLeaves dissolves leaf catalogs lighter than the optimal weight whenever
// the parent can absorb them without exceeding the maximum weight. Scanning
// restarts after every cut until no leaf qualifies.
func (g *GreedyPartitioner) CutLeaves() []string {
	var removed []string
	for {
		leaf := g.findCuttableLeaf()
		if leaf == nil {
			return removed
		}
		paths, err := g.tree.Dissolve(leaf)
		if err != nil {
			// only the root lacks a parent, and it is never a candidate
			g.logger.Error().Err(err).Str("catalog", leaf.Path).Msg("Failed to dissolve leaf catalog")
			return removed
		}
		g.metrics.IncrementOperation(trees.OpLeafCut)
		g.logger.Debug().Str("catalog", leaf.Path).Int64("weight", leaf.Weight).Msg("Dissolved leaf catalog")
		removed = append(removed, paths...)
	}
}

func (g *GreedyPartitioner) findCuttableLeaf() *trees.CatalogNode {
	var found *trees.CatalogNode
	g.tree.Root().Walk(func(node *trees.CatalogNode, _ int) bool {
		if found != nil {
			return false
		}
		if node.IsRoot() || !node.IsLeaf() || node.Weight >= g.optimalWeight {
			return true
		}
		parent, ok := g.tree.Parent(node)
		if ok && node.Weight+parent.Weight <= g.maxWeight {
			found = node
			return false
		}
		return true
	})
	return found
}
