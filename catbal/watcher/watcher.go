// Package watcher keeps a namespace partition in sync with a live directory
// tree by replaying filesystem events through the incremental API.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	internal "github.com/ZanzyTHEbar/catalog-balancer/catbal"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Query once the watcher stopped
var ErrClosed = errors.New("watcher closed")

// Stats counts the events the watcher applied
type Stats struct {
	Inserted   int
	Deleted    int
	Ignored    int
	Rebalances int
}

// Watcher owns a NamespacePartitioner and applies create and remove events
// of the watched tree to it from a single goroutine. Dirty state is
// rebalanced periodically.
type Watcher struct {
	root        string
	partitioner *balancer.NamespacePartitioner
	watcher     *fsnotify.Watcher

	interval   time.Duration
	underflow  int64
	overflow   int64
	markerName string
	logger     zerolog.Logger

	queries chan func(*balancer.NamespacePartitioner)
	dirty   bool
	stats   Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// Option customizes a Watcher
type Option func(*Watcher)

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithInterval sets how often dirty catalogs are rebalanced
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithThresholds sets the underflow and overflow bounds used when rebalancing
func WithThresholds(underflow, overflow int64) Option {
	return func(w *Watcher) {
		w.underflow, w.overflow = underflow, overflow
	}
}

// WithMarkerName sets the marker file name ignored by the watcher
func WithMarkerName(name string) Option {
	return func(w *Watcher) {
		if name != "" {
			w.markerName = name
		}
	}
}

// New creates a watcher for the directory tree at root. p must already hold
// the tree's namespace and a balanced partition.
func New(root string, p *balancer.NamespacePartitioner, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		root:        root,
		partitioner: p,
		interval:    5 * time.Second,
		underflow:   int64(internal.DefaultUnderflowThreshold),
		overflow:    int64(internal.DefaultOverflowThreshold),
		markerName:  internal.DefaultMarkerName,
		logger:      zerolog.Nop(),
		queries:     make(chan func(*balancer.NamespacePartitioner)),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := balancer.ValidateThresholds(w.underflow, w.overflow); err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.watcher = fsWatcher
	return w, nil
}

// Start registers every directory below root and starts the event loop
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addPathRecursive(w.root); err != nil {
		w.watcher.Close()
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info().Str("root", w.root).Msg("Watcher started")
	return nil
}

// Close stops the event loop and releases the fsnotify watcher
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.watcher.Close()
}

// Query runs fn on the event loop goroutine, which owns the partitioner
func (w *Watcher) Query(ctx context.Context, fn func(*balancer.NamespacePartitioner)) error {
	result := make(chan struct{})
	wrapped := func(p *balancer.NamespacePartitioner) {
		fn(p)
		close(result)
	}
	select {
	case w.queries <- wrapped:
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the event counters
func (w *Watcher) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := w.Query(ctx, func(*balancer.NamespacePartitioner) { s = w.stats })
	return s, err
}

// Totals returns the event counters once Close has returned
func (w *Watcher) Totals() Stats {
	return w.stats
}

func (w *Watcher) addPathRecursive(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")

		case fn := <-w.queries:
			fn(w.partitioner)

		case <-ticker.C:
			w.flush()
		}
	}
}

// flush rebalances once after a burst of events
func (w *Watcher) flush() {
	if !w.dirty {
		return
	}
	if err := w.partitioner.FullRebalance(w.underflow, w.overflow); err != nil {
		w.logger.Error().Err(err).Msg("Rebalance failed")
		return
	}
	w.partitioner.RebuildCatalogTree()
	w.dirty = false
	w.stats.Rebalances++
	w.logger.Info().Int("catalogs", w.partitioner.CatalogCount()).Msg("Catalogs rebalanced")
}

func (w *Watcher) namespacePath(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return trees.NormalizePath(filepath.ToSlash(rel)), true
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Base(event.Name) == w.markerName {
		w.stats.Ignored++
		return
	}
	path, ok := w.namespacePath(event.Name)
	if !ok || path == trees.RootPath {
		w.stats.Ignored++
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		w.created(event.Name, path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.removed(path)
	default:
		w.stats.Ignored++
	}
}

func (w *Watcher) created(name, path string) {
	info, err := os.Lstat(name)
	if err != nil {
		// gone again before we got to it
		w.logger.Debug().Err(err).Str("path", path).Msg("Created entry vanished")
		return
	}
	if !info.IsDir() {
		w.insert(path, false)
		return
	}

	if err := w.addPathRecursive(name); err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch new directory")
	}
	// entries created before the watch was registered produce no events
	err = filepath.Walk(name, func(sub string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Name() == w.markerName {
			return nil
		}
		if subPath, ok := w.namespacePath(sub); ok {
			w.insert(subPath, info.IsDir())
		}
		return nil
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Failed to scan new directory")
	}
}

func (w *Watcher) insert(path string, isDirectory bool) {
	if _, ok := w.partitioner.Node(path); ok {
		return
	}
	if err := w.partitioner.InsertNode(trees.NewNamespaceNode(path, isDirectory, false)); err != nil {
		w.logger.Error().Err(err).Str("path", path).Msg("Failed to insert entry")
		return
	}
	w.stats.Inserted++
	w.dirty = true
}

func (w *Watcher) removed(path string) {
	before := w.partitioner.Size()
	err := w.partitioner.DeleteNode(path)
	if errors.Is(err, balancer.ErrNodeNotFound) {
		w.stats.Ignored++
		return
	}
	if err != nil {
		w.logger.Error().Err(err).Str("path", path).Msg("Failed to delete entry")
		return
	}
	w.stats.Deleted += before - w.partitioner.Size()
	w.dirty = true
}
