package workload

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
)

// InsertionOdds is how many of the 11 equally likely draws pick an insertion
// batch over a deletion batch
const InsertionOdds = 8

// Insertion is a generated subtree grafted below an existing directory
type Insertion struct {
	Mountpoint string
	Entries    []*trees.NamespaceNode
}

// Result describes one simulated batch
type Result struct {
	Insertion bool
	// Balance is the net number of entries added (negative when removed)
	Balance  int
	Dirty    int
	Splits   int
	Merges   int
	Catalogs int
}

// Simulator applies random insertion and deletion batches to a partitioned
// namespace and repairs the catalogs they touched.
type Simulator struct {
	partitioner *balancer.NamespacePartitioner
	rng         *rand.Rand
	generation  int
	logger      zerolog.Logger
}

// Option customizes a Simulator
type Option func(*Simulator)

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// NewSimulator creates a simulator driving p with a deterministic random source
func NewSimulator(p *balancer.NamespacePartitioner, seed int64, opts ...Option) *Simulator {
	s := &Simulator{
		partitioner: p,
		rng:         rand.New(rand.NewSource(seed)),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rand exposes the simulator's random source
func (s *Simulator) Rand() *rand.Rand {
	return s.rng
}

func (s *Simulator) directories() []string {
	var dirs []string
	s.partitioner.Namespace().Walk(func(path string, n *trees.NamespaceNode) bool {
		if n.IsDirectory {
			dirs = append(dirs, path)
		}
		return false
	})
	return dirs
}

// SpreadInsertion draws random subtrees totalling size entries, each chunk
// between 1 and maxChunk entries, grafted below randomly chosen directories.
func (s *Simulator) SpreadInsertion(size, maxChunk int) []Insertion {
	dirs := s.directories()
	if len(dirs) == 0 || maxChunk <= 0 {
		return nil
	}
	var insertions []Insertion
	for total := 0; total < size; {
		mountpoint := dirs[s.rng.Intn(len(dirs))]
		chunk := 1 + s.rng.Intn(maxChunk)
		if chunk > size-total {
			chunk = size - total
		}
		total += chunk

		s.generation++
		prefix := fmt.Sprintf("NEW_%d_", s.generation)
		generated := GenerateTree(s.rng, chunk, mountpoint, prefix)
		nodes := make([]*trees.NamespaceNode, 0, len(generated))
		for _, e := range generated {
			nodes = append(nodes, trees.NewNamespaceNode(e.Path, e.IsDirectory, false))
		}
		insertions = append(insertions, Insertion{Mountpoint: mountpoint, Entries: nodes})
	}
	return insertions
}

// SpreadDeletion draws distinct random subtrees of at most maxChunk entries
// until about size entries are selected. The root and subtrees holding a
// catalog mountpoint are never drawn. It gives up after a bounded number of
// draws.
func (s *Simulator) SpreadDeletion(size, maxChunk int) []string {
	keys := s.partitioner.Namespace().Keys()
	if len(keys) == 0 {
		return nil
	}
	drawn := roaring.New()
	maxDraws := 4 * len(keys)
	var deletions []string
	for total, draws := 0, 0; total < size && draws < maxDraws && drawn.GetCardinality() < uint64(len(keys)); draws++ {
		idx := uint32(s.rng.Intn(len(keys)))
		if !drawn.CheckedAdd(idx) {
			continue
		}
		path := keys[idx]
		if path == trees.RootPath {
			continue
		}
		if s.partitioner.ContainsCatalog(path) {
			continue
		}
		subtree := s.partitioner.SubtreeSize(path)
		if subtree > maxChunk {
			continue
		}
		total += subtree
		deletions = append(deletions, path)
	}
	return deletions
}

// Simulate runs one random batch of roughly size entries: an insertion with
// probability 8/11, otherwise a deletion. Catalogs above maxCatalog are
// repartitioned and catalogs below minCatalog are merged into their parents.
func (s *Simulator) Simulate(size, maxChunk int, minCatalog, maxCatalog int64) (*Result, error) {
	var (
		res *Result
		err error
	)
	if s.rng.Intn(11) < InsertionOdds {
		res, err = s.PublishInsertions(s.SpreadInsertion(size, maxChunk), maxCatalog)
	} else {
		res, err = s.PublishDeletions(s.SpreadDeletion(size, maxChunk), minCatalog, maxCatalog)
	}
	if err != nil {
		return nil, err
	}
	s.partitioner.RebuildCatalogTree()
	res.Catalogs = s.partitioner.CatalogCount()
	return res, nil
}

// PublishInsertions inserts every generated entry, then repartitions each
// touched catalog that grew beyond maxCatalog
func (s *Simulator) PublishInsertions(insertions []Insertion, maxCatalog int64) (*Result, error) {
	res := &Result{Insertion: true}
	dirty := newDirtySet()
	for _, ins := range insertions {
		before := s.partitioner.Size()
		for _, node := range ins.Entries {
			dirty.add(s.partitioner.FindCatalog(node.Path))
			if err := s.partitioner.InsertNode(node); err != nil {
				return nil, fmt.Errorf("failed to insert %s: %w", node.Path, err)
			}
		}
		added := s.partitioner.Size() - before
		res.Balance += added
		s.logger.Debug().
			Str("mountpoint", ins.Mountpoint).
			Int("entries", added).
			Msg("Inserted subtree")
	}

	for _, path := range dirty.paths {
		catalog, ok := s.partitioner.Catalog(path)
		if !ok || catalog.Weight <= maxCatalog {
			continue
		}
		s.logger.Info().Str("catalog", path).Int64("weight", catalog.Weight).Msg("Catalog overflow, balancing")
		if err := s.partitioner.Balance(path); err != nil {
			return nil, err
		}
		res.Splits++
	}
	res.Dirty = len(dirty.paths)
	return res, nil
}

// PublishDeletions removes every drawn subtree, then merges touched catalogs
// that fell below minCatalog and repartitions those above maxCatalog. A parent
// receiving a merged catalog is checked again.
func (s *Simulator) PublishDeletions(deletions []string, minCatalog, maxCatalog int64) (*Result, error) {
	res := &Result{}
	dirty := newDirtySet()
	for _, path := range deletions {
		if _, ok := s.partitioner.Node(path); !ok {
			continue
		}
		owner := s.partitioner.FindCatalog(path)
		before := s.partitioner.Size()
		if err := s.partitioner.DeleteNode(path); err != nil {
			if errors.Is(err, balancer.ErrNodeNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		res.Balance -= before - s.partitioner.Size()
		dirty.add(owner)
	}
	s.logger.Debug().Int("entries", -res.Balance).Msg("Removed entries")

	for i := 0; i < len(dirty.paths); i++ {
		path := dirty.paths[i]
		catalog, ok := s.partitioner.Catalog(path)
		if !ok {
			continue
		}
		switch {
		case catalog.Weight < minCatalog && path != trees.RootPath:
			parent, err := s.partitioner.RemoveCatalog(path)
			if err != nil {
				return nil, err
			}
			res.Merges++
			if parent != nil {
				s.logger.Info().
					Str("catalog", path).
					Str("parent", parent.Path).
					Int64("parent_weight", parent.Weight).
					Msg("Catalog underflow, merged")
				dirty.requeue(parent.Path)
			}
		case catalog.Weight > maxCatalog:
			s.logger.Info().Str("catalog", path).Int64("weight", catalog.Weight).Msg("Catalog overflow, balancing")
			if err := s.partitioner.Balance(path); err != nil {
				return nil, err
			}
			res.Splits++
		}
	}
	res.Dirty = len(dirty.paths)
	return res, nil
}

// dirtySet keeps catalogs in first-touched order
type dirtySet struct {
	seen  map[string]struct{}
	paths []string
}

func newDirtySet() *dirtySet {
	return &dirtySet{seen: make(map[string]struct{})}
}

func (d *dirtySet) add(path string) {
	if _, ok := d.seen[path]; ok {
		return
	}
	d.seen[path] = struct{}{}
	d.paths = append(d.paths, path)
}

func (d *dirtySet) requeue(path string) {
	d.seen[path] = struct{}{}
	d.paths = append(d.paths, path)
}
