// Package workload generates synthetic namespaces and insert/delete batches
// for exercising a NamespacePartitioner.
package workload

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/spf13/afero"
)

// DirectoryRatio is the one-in-N chance that a generated entry is a directory
const DirectoryRatio = 4

// GenerateTree grows a random subtree below mountpoint until it holds
// numEntries entries, mountpoint included. Only the new entries are returned,
// parents before children. New directories are named prefix+"d<n>" and files
// prefix+"f<n>".
func GenerateTree(rng *rand.Rand, numEntries int, mountpoint, prefix string) []seed.Entry {
	if numEntries <= 1 {
		return nil
	}
	dirs := []string{mountpoint}
	numFiles := 0
	entries := make([]seed.Entry, 0, numEntries-1)
	for len(dirs)+numFiles < numEntries {
		parent := dirs[rng.Intn(len(dirs))]
		if rng.Intn(DirectoryRatio) == 0 {
			path := trees.JoinPath(parent, prefix+"d"+strconv.Itoa(len(dirs)+1))
			dirs = append(dirs, path)
			entries = append(entries, seed.Entry{Path: path, IsDirectory: true})
			continue
		}
		numFiles++
		path := trees.JoinPath(parent, prefix+"f"+strconv.Itoa(numFiles))
		entries = append(entries, seed.Entry{Path: path})
	}
	return entries
}

// GenerateNamespace returns a random namespace of numEntries entries
// including the root directory
func GenerateNamespace(rng *rand.Rand, numEntries int) []seed.Entry {
	entries := []seed.Entry{{Path: trees.RootPath, IsDirectory: true}}
	return append(entries, GenerateTree(rng, numEntries, trees.RootPath, "")...)
}

// GenerateFSTree materializes a random namespace below root on fs. Files are
// created empty.
func GenerateFSTree(fs afero.Fs, rng *rand.Rand, root string, numEntries int) error {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create tree root: %w", err)
	}
	for _, e := range GenerateTree(rng, numEntries, trees.RootPath, "") {
		target := filepath.Join(root, filepath.FromSlash(e.Path))
		if e.IsDirectory {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if err := afero.WriteFile(fs, target, nil, 0o644); err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
	}
	return nil
}
