package balancer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// FilesystemPartitioner partitions a real directory tree with the greedy
// strategy and materializes the result as marker files.
type FilesystemPartitioner struct {
	fs         afero.Fs
	lister     *FSLister
	greedy     *GreedyPartitioner
	markerName string
	logger     zerolog.Logger
}

// NewFilesystemPartitioner partitions the tree rooted at rootPath on fs
func NewFilesystemPartitioner(fs afero.Fs, rootPath string, optimalWeight, maxWeight int64, opts ...Option) (*FilesystemPartitioner, error) {
	s := newSettings(opts)
	info, err := fs.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat partition root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, rootPath)
	}
	lister := NewFSLister(fs, rootPath, s.markerName)
	greedy, err := NewGreedyPartitioner(lister, optimalWeight, maxWeight, opts...)
	if err != nil {
		return nil, err
	}
	return &FilesystemPartitioner{
		fs:         fs,
		lister:     lister,
		greedy:     greedy,
		markerName: s.markerName,
		logger:     s.logger,
	}, nil
}

// Balance partitions the tree, removes every marker that does not belong to
// a resulting catalog (dissolved by the leaf cut or left by an earlier run)
// and writes a marker into every remaining non-root catalog.
func (p *FilesystemPartitioner) Balance() error {
	removed, err := p.greedy.Partition()
	if err != nil {
		return err
	}
	stale, err := p.RemoveStaleMarkers()
	if err != nil {
		return err
	}
	if err := p.CreateCatalogMarkers(); err != nil {
		return err
	}
	p.logger.Info().
		Int("catalogs", p.greedy.Tree().Len()).
		Int("dissolved", len(removed)).
		Int("stale_markers", len(stale)).
		Msg("Filesystem partition complete")
	return nil
}

// RemoveStaleMarkers deletes markers found below the root whose directory is
// not a non-root catalog of the current partition and returns their catalog
// paths
func (p *FilesystemPartitioner) RemoveStaleMarkers() ([]string, error) {
	var stale []string
	err := afero.Walk(p.fs, p.lister.AbsolutePath(trees.RootPath), func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != p.markerName {
			return nil
		}
		path, err := p.lister.NamespacePath(filepath.Dir(name))
		if err != nil {
			return err
		}
		if _, ok := p.greedy.Tree().Node(path); ok && path != trees.RootPath {
			return nil
		}
		if err := p.removeMarker(path); err != nil {
			return err
		}
		stale = append(stale, path)
		return nil
	})
	if err != nil {
		return stale, fmt.Errorf("failed to sweep catalog markers: %w", err)
	}
	return stale, nil
}

// CreateCatalogMarkers writes an empty marker into each non-root catalog
func (p *FilesystemPartitioner) CreateCatalogMarkers() error {
	var werr error
	p.greedy.Root().Walk(func(node *trees.CatalogNode, _ int) bool {
		if node.IsRoot() {
			return true
		}
		if err := afero.WriteFile(p.fs, p.MarkerPath(node.Path), nil, 0o644); err != nil {
			werr = fmt.Errorf("failed to create catalog marker: %w", err)
			return false
		}
		return true
	})
	return werr
}

// Reset deletes every marker created for the current partition and drops all
// catalogs below the root
func (p *FilesystemPartitioner) Reset() error {
	var errs []error
	for _, path := range p.greedy.Tree().Reset() {
		if err := p.removeMarker(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MarkerPath returns the on-disk marker location for a catalog
func (p *FilesystemPartitioner) MarkerPath(catalogPath string) string {
	return filepath.Join(p.lister.AbsolutePath(catalogPath), p.markerName)
}

// Root returns the root catalog
func (p *FilesystemPartitioner) Root() *trees.CatalogNode {
	return p.greedy.Root()
}

// Summary returns the catalog weights in pre-order
func (p *FilesystemPartitioner) Summary() []int64 {
	return p.greedy.Summary()
}

func (p *FilesystemPartitioner) removeMarker(catalogPath string) error {
	err := p.fs.Remove(p.MarkerPath(catalogPath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove catalog marker: %w", err)
	}
	return nil
}
