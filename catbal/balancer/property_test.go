package balancer_test

import (
	"math/rand"
	"testing"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/workload"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func randomPartitioner(t *testing.T, seed int64, size int, maxWeight int64) *balancer.NamespacePartitioner {
	p, err := balancer.NewNamespacePartitioner(maxWeight/2+1, maxWeight)
	require.NoError(t, err)
	p.Populate(workload.GenerateNamespace(rand.New(rand.NewSource(seed)), size))
	return p
}

func total(weights []int64) int64 {
	var sum int64
	for _, w := range weights {
		sum += w
	}
	return sum
}

func TestProperty_OptimalPartition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("catalog weights add up to every entry but the root", prop.ForAll(
		func(seed int64, size int, maxWeight int64) bool {
			p := randomPartitioner(t, seed, size, maxWeight)
			if err := p.Balance(trees.RootPath); err != nil {
				return false
			}
			return total(p.Summary()) == int64(p.Size()-1) && p.Verify() == nil
		},
		gen.Int64Range(1, 1<<20),
		gen.IntRange(1, 3000),
		gen.Int64Range(20, 500),
	))

	properties.Property("only undividable catalogs stay above the maximum weight", prop.ForAll(
		func(seed int64, size int, maxWeight int64) bool {
			p := randomPartitioner(t, seed, size, maxWeight)
			if err := p.Balance(trees.RootPath); err != nil {
				return false
			}
			for path, weight := range p.Weights() {
				if weight <= p.MaxWeight() {
					continue
				}
				node, ok := p.Node(path)
				if !ok {
					return false
				}
				// a mountpoint is not plain, so look at its children directly
				for _, childPath := range node.Children {
					child, ok := p.Node(childPath)
					if ok && child.IsPlainDirectory() && child.GetWeight() > 1 {
						return false
					}
				}
			}
			return true
		},
		gen.Int64Range(1, 1<<20),
		gen.IntRange(1, 3000),
		gen.Int64Range(2, 60),
	))

	properties.Property("rebuilding the catalog tree is idempotent", prop.ForAll(
		func(seed int64, size int) bool {
			p := randomPartitioner(t, seed, size, 100)
			if err := p.Balance(trees.RootPath); err != nil {
				return false
			}
			before := p.Print()
			p.RebuildCatalogTree()
			return p.Print() == before
		},
		gen.Int64Range(1, 1<<20),
		gen.IntRange(1, 2000),
	))

	properties.Property("inserting then deleting a subtree restores every weight", prop.ForAll(
		func(seed int64, size int) bool {
			p := randomPartitioner(t, seed, size, 100)
			if err := p.Balance(trees.RootPath); err != nil {
				return false
			}
			before := p.Weights()
			if err := p.InsertNode(trees.NewNamespaceNode("/zz_new/a/b", false, false)); err != nil {
				return false
			}
			if err := p.DeleteNode("/zz_new"); err != nil {
				return false
			}
			after := p.Weights()
			if len(before) != len(after) {
				return false
			}
			for path, w := range before {
				if after[path] != w {
					return false
				}
			}
			return p.Verify() == nil
		},
		gen.Int64Range(1, 1<<20),
		gen.IntRange(1, 2000),
	))

	properties.TestingRun(t)
}

func TestProperty_GreedyPartition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("greedy catalogs cover every entry and no leaf is left to cut", prop.ForAll(
		func(seed int64, size int, maxWeight int64) bool {
			p := randomPartitioner(t, seed, size, maxWeight)
			g, err := balancer.NewGreedyPartitioner(balancer.NewVirtualLister(p.Namespace()), maxWeight/2+1, maxWeight)
			if err != nil {
				return false
			}
			if _, err := g.Partition(); err != nil {
				return false
			}
			if total(g.Summary()) != int64(p.Size()-1) {
				return false
			}
			return len(g.CutLeaves()) == 0
		},
		gen.Int64Range(1, 1<<20),
		gen.IntRange(1, 3000),
		gen.Int64Range(20, 500),
	))

	properties.TestingRun(t)
}
