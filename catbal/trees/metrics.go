package trees

import (
	"maps"
	"sync"
	"time"
)

// Operation names recorded by the partitioners
const (
	OpInsert         = "insert"
	OpDelete         = "delete"
	OpWeakInsert     = "weak_insert"
	OpWeakDelete     = "weak_delete"
	OpCatalogCreated = "catalog_created"
	OpCatalogSkipped = "catalog_skipped"
	OpCatalogMerged  = "catalog_merged"
	OpCatalogDropped = "catalog_dropped"
	OpCatalogSplit   = "catalog_split"
	OpLeafCut        = "leaf_cut"
	OpRebuild        = "rebuild"
)

// TreeMetrics holds statistical information about a catalog tree
type TreeMetrics struct {
	TotalCatalogs   int64
	TotalEntries    int64
	MaxDepth        int
	LastUpdated     time.Time
	ProcessingTime  time.Duration
	OperationCounts map[string]int64
}

// MetricsCollector counts partitioning operations. It is safe to read from
// another goroutine while the partitioner runs.
type MetricsCollector struct {
	mu      sync.Mutex
	counts  map[string]int64
	started time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counts:  make(map[string]int64),
		started: time.Now(),
	}
}

// IncrementOperation safely increments operation count using mutex locking
func (mc *MetricsCollector) IncrementOperation(op string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counts[op]++
}

// Count returns the number of times op was recorded
func (mc *MetricsCollector) Count(op string) int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.counts[op]
}

// Reset clears all counters
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	clear(mc.counts)
	mc.started = time.Now()
}

// computeTreeMetrics recursively computes metrics starting from the given catalog.
func computeTreeMetrics(node *CatalogNode, metrics *TreeMetrics) {
	node.Walk(func(n *CatalogNode, depth int) bool {
		metrics.TotalCatalogs++
		metrics.TotalEntries += n.Weight
		if depth > metrics.MaxDepth {
			metrics.MaxDepth = depth
		}
		return true
	})
}

// Snapshot computes metrics for the catalog tree rooted at root together
// with the operation counters collected so far.
func (mc *MetricsCollector) Snapshot(root *CatalogNode) *TreeMetrics {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	metrics := &TreeMetrics{
		LastUpdated:     time.Now(),
		ProcessingTime:  time.Since(mc.started),
		OperationCounts: maps.Clone(mc.counts),
	}
	if root != nil {
		computeTreeMetrics(root, metrics)
	}
	return metrics
}
