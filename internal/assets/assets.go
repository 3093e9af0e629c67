// Package assets tracks asset files on disk: a registry of identities and a
// persisted cache of header info used by browsers and repeat imports.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Faultbox/meshforge/pkg/contenthash"
	"github.com/Faultbox/meshforge/pkg/formats"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

// ErrDuplicateID is returned when two files claim the same asset ID.
var ErrDuplicateID = errors.New("asset id already registered")

// Info is the registry's view of one asset file.
type Info struct {
	Type         geometry.AssetType
	ID           uuid.UUID
	Hash         contenthash.Digest
	Icon         []byte
	ImportDate   time.Time
	FullPath     string
	RegisterTime time.Time
}

// InfoFromAsset copies header metadata into an Info.
func InfoFromAsset(a geometry.Asset) Info {
	return Info{
		Type:       a.Type,
		ID:         a.ID,
		Hash:       a.Hash,
		Icon:       a.Icon,
		ImportDate: a.ImportDate,
		FullPath:   a.FullPath,
	}
}

// Registry maps asset paths to identities.
type Registry struct {
	mu     sync.Mutex
	byPath map[string]Info
	byID   map[uuid.UUID]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byPath: make(map[string]Info),
		byID:   make(map[uuid.UUID]string),
	}
}

// key normalizes a path so the same file always maps to one entry.
func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Register reads the asset header at path and records it.
func (r *Registry) Register(path string) (Info, error) {
	a, err := formats.ReadAssetInfo(path)
	if err != nil {
		return Info{}, fmt.Errorf("registering %s: %w", path, err)
	}
	info := InfoFromAsset(a)
	if err := r.Put(info); err != nil {
		return Info{}, err
	}
	return r.mustLookup(info.FullPath), nil
}

// Put records info under info.FullPath, replacing any previous entry for that
// path.
func (r *Registry) Put(info Info) error {
	k := key(info.FullPath)

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byID[info.ID]; ok && owner != k {
		return fmt.Errorf("%w: %s is used by %s", ErrDuplicateID, info.ID, owner)
	}
	if old, ok := r.byPath[k]; ok && old.ID != info.ID {
		delete(r.byID, old.ID)
	}

	info.FullPath = k
	info.RegisterTime = time.Now()
	r.byPath[k] = info
	r.byID[info.ID] = k
	return nil
}

func (r *Registry) mustLookup(path string) Info {
	info, _ := r.Lookup(path)
	return info
}

// Lookup returns the entry for path.
func (r *Registry) Lookup(path string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byPath[key(path)]
	return info, ok
}

// ByID returns the entry carrying id.
func (r *Registry) ByID(id uuid.UUID) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Info{}, false
	}
	return r.byPath[p], true
}

// Unregister drops the entry for path and reports whether one existed.
func (r *Registry) Unregister(path string) bool {
	k := key(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byPath[k]
	if !ok {
		return false
	}
	delete(r.byPath, k)
	delete(r.byID, info.ID)
	return true
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPath)
}

// All returns every entry ordered by path.
func (r *Registry) All() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.byPath))
	for _, info := range r.byPath {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullPath < out[j].FullPath })
	return out
}

// IDFor returns the ID to write for an asset at path. A file that is already
// registered with the same type keeps its ID across re-imports. An
// unregistered path falls back to the header of the asset already on disk,
// unless another registered path owns that ID.
func (r *Registry) IDFor(path string, typ geometry.AssetType) uuid.UUID {
	k := key(path)

	r.mu.Lock()
	info, ok := r.byPath[k]
	r.mu.Unlock()
	if ok {
		if info.Type == typ {
			return info.ID
		}
		return uuid.New()
	}

	a, err := formats.ReadAssetInfo(k)
	if err != nil || a.Type != typ || a.ID == uuid.Nil {
		return uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.byID[a.ID]; taken && owner != k {
		return uuid.New()
	}
	return a.ID
}

// FindAssets returns the asset files under dir in walk order without
// opening them. The cache directory is skipped; unreadable directories are
// reported together.
func FindAssets(dir string) ([]string, error) {
	var (
		paths []string
		errs  error
	)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		if d.IsDir() {
			if path != dir && d.Name() == cacheDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), geometry.AssetFileExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, multierr.Append(errs, walkErr)
}

// Scan registers every asset file under dir. Unreadable assets are skipped
// and reported together; the count covers successful registrations.
func (r *Registry) Scan(dir string) (int, error) {
	paths, errs := FindAssets(dir)
	count := 0
	for _, path := range paths {
		if _, err := r.Register(path); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		count++
	}
	return count, errs
}

// ScanCached registers every asset file under dir through cache. Headers
// are read only for files that are new or changed since they were cached,
// and cache entries for files that no longer exist are dropped.
func (r *Registry) ScanCached(dir string, cache *InfoCache) (int, error) {
	paths, errs := FindAssets(dir)
	count := 0
	for _, path := range paths {
		e, err := cache.Add(path)
		if err != nil {
			cache.Remove(path)
			errs = multierr.Append(errs, fmt.Errorf("registering %s: %w", path, err))
			continue
		}
		if err := r.Put(e.Info(path)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		count++
	}
	cache.Retain(paths)
	return count, errs
}
