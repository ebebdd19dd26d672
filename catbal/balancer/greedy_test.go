package balancer

import (
	"testing"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallNamespace holds /a and /b with three files each, /c with one file and
// a top-level file /f: twelve entries in total
func smallNamespace(t *testing.T) *NamespacePartitioner {
	t.Helper()
	p, err := NewNamespacePartitioner(1, 1)
	require.NoError(t, err)
	p.AddEntry(trees.RootPath, true, false)
	p.Populate(dirWithFiles("/a", 3))
	p.Populate(dirWithFiles("/b", 3))
	p.Populate(dirWithFiles("/c", 1))
	p.AddEntry("/f", false, false)
	require.Equal(t, 12, p.Size())
	return p
}

func TestGreedyPartitioner(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"CutsLightLeaves", testGreedyCutsLightLeaves},
		{"FoldsUntilOptimal", testGreedyFoldsUntilOptimal},
		{"AbsorbsEverythingWhenRoomy", testGreedyAbsorbsEverything},
		{"RepartitionDiscardsPreviousTree", testGreedyRepartition},
		{"ListerErrors", testGreedyListerErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testGreedyCutsLightLeaves(t *testing.T) {
	ns := smallNamespace(t)
	g, err := NewGreedyPartitioner(NewVirtualLister(ns.Namespace()), 4, 10)
	require.NoError(t, err)

	removed, err := g.Partition()
	require.NoError(t, err)

	// /a and /b fit into the root one after the other, /c would overflow it
	assert.Equal(t, []string{"/a", "/b"}, removed)
	assert.Equal(t, []int64{10, 1}, g.Summary())
	_, ok := g.Tree().Node("/c")
	assert.True(t, ok)
	assert.Equal(t, int64(2), g.metrics.Count(trees.OpLeafCut))
}

func testGreedyFoldsUntilOptimal(t *testing.T) {
	ns := smallNamespace(t)
	g, err := NewGreedyPartitioner(NewVirtualLister(ns.Namespace()), 10, 10)
	require.NoError(t, err)

	removed, err := g.Partition()
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, []int64{10, 1}, g.Summary(), "/a and /b are folded into the root before it is full")
	assert.Equal(t, 2, g.Tree().Len())
}

func testGreedyAbsorbsEverything(t *testing.T) {
	ns := smallNamespace(t)
	g, err := NewGreedyPartitioner(NewVirtualLister(ns.Namespace()), 10, 20)
	require.NoError(t, err)

	removed, err := g.Partition()
	require.NoError(t, err)
	assert.Equal(t, []string{"/c"}, removed)
	assert.Equal(t, []int64{11}, g.Summary())
}

func testGreedyRepartition(t *testing.T) {
	ns := smallNamespace(t)
	g, err := NewGreedyPartitioner(NewVirtualLister(ns.Namespace()), 4, 10)
	require.NoError(t, err)

	_, err = g.Partition()
	require.NoError(t, err)
	first := g.Root().String()

	_, err = g.Partition()
	require.NoError(t, err)
	assert.Equal(t, first, g.Root().String())
	assert.Equal(t, int64(11), g.Root().TotalEntries())
}

func testGreedyListerErrors(t *testing.T) {
	_, err := NewGreedyPartitioner(NewVirtualLister(trees.NewPathIndex[*trees.NamespaceNode]()), 0, 10)
	assert.ErrorIs(t, err, ErrInvalidWeights)

	g, err := NewGreedyPartitioner(NewVirtualLister(trees.NewPathIndex[*trees.NamespaceNode]()), 4, 10)
	require.NoError(t, err)
	_, err = g.Partition()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
