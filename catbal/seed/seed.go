// Package seed produces the flat entry listings used to populate an
// in-memory namespace, either from a real directory tree or from a snapshot
// written by an earlier run.
package seed

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/google/renameio"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack"
)

// SnapshotVersion is bumped whenever the on-disk layout changes
const SnapshotVersion = 1

// Entry is one namespace entry. Parents always precede their children.
type Entry struct {
	Path        string `msgpack:"path"`
	IsDirectory bool   `msgpack:"dir"`
	IsCatalog   bool   `msgpack:"catalog"`
}

// Revision is the set of changes between two published states of a namespace
type Revision struct {
	Deletions []string `msgpack:"deletions"`
	Additions []Entry  `msgpack:"additions"`
}

// Snapshot is the serialized form of a namespace listing, optionally
// followed by the revisions applied on top of it
type Snapshot struct {
	Version   int        `msgpack:"version"`
	Source    string     `msgpack:"source"`
	Entries   []Entry    `msgpack:"entries"`
	Revisions []Revision `msgpack:"revisions,omitempty"`
}

// Options control how a directory tree is read
type Options struct {
	// MarkerName flags the containing directory as a catalog mountpoint.
	// Marker files themselves are not reported.
	MarkerName string
	// IgnoreFile names a gitignore-style file at the tree root
	IgnoreFile string
}

// FromDirectory walks root on fs in lexical order and returns every entry
// below it, starting with the root itself under the empty path.
func FromDirectory(fs afero.Fs, root string, opts Options) ([]Entry, error) {
	matcher, err := loadIgnore(fs, root, opts.IgnoreFile)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	index := make(map[string]int)
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		nsPath := trees.NormalizePath(filepath.ToSlash(rel))

		if nsPath != trees.RootPath {
			name := info.Name()
			if !info.IsDir() && (name == opts.MarkerName || name == opts.IgnoreFile) {
				if name == opts.MarkerName {
					if idx, ok := index[trees.ParentPath(nsPath)]; ok && trees.ParentPath(nsPath) != trees.RootPath {
						entries[idx].IsCatalog = true
					}
				}
				return nil
			}
			if matcher != nil && matcher.MatchesPath(strings.TrimPrefix(nsPath, "/")) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		index[nsPath] = len(entries)
		entries = append(entries, Entry{Path: nsPath, IsDirectory: info.IsDir()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return entries, nil
}

func loadIgnore(fs afero.Fs, root, name string) (*ignore.GitIgnore, error) {
	if name == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(fs, filepath.Join(root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), nil
}

// NewSnapshot wraps a listing in a snapshot of the current version
func NewSnapshot(source string, entries []Entry, revisions ...Revision) *Snapshot {
	return &Snapshot{
		Version:   SnapshotVersion,
		Source:    source,
		Entries:   entries,
		Revisions: revisions,
	}
}

// Write encodes snap with msgpack
func Write(w io.Writer, snap *Snapshot) error {
	if err := msgpack.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Read decodes a snapshot written by Write
func Read(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// Dump atomically replaces the snapshot file at path
func Dump(path string, snap *Snapshot) error {
	buf, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := renameio.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot file written by Dump
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Read(f)
}
