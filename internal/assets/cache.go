package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/meshforge/pkg/binio"
	"github.com/Faultbox/meshforge/pkg/contenthash"
	"github.com/Faultbox/meshforge/pkg/formats"
	"github.com/Faultbox/meshforge/pkg/geometry"
)

const (
	cacheDirName  = ".meshforge"
	cacheFileName = "AssetInfoCache.bin"
	cacheMagic    = "MFIC"
	cacheVersion  = 2
)

// ErrCorruptCache is returned when the cache file cannot be decoded.
var ErrCorruptCache = errors.New("corrupt asset info cache")

// CacheEntry is the header info remembered for one asset file.
type CacheEntry struct {
	Type       geometry.AssetType
	ID         uuid.UUID
	ImportDate time.Time
	ModTime    time.Time
	Icon       []byte
	Hash       contenthash.Digest
}

// Info returns the registry entry for the asset at path.
func (e CacheEntry) Info(path string) Info {
	return Info{
		Type:       e.Type,
		ID:         e.ID,
		Hash:       e.Hash,
		Icon:       e.Icon,
		ImportDate: e.ImportDate,
		FullPath:   key(path),
	}
}

// InfoCache remembers icons and hashes of asset files between runs so
// listings do not have to reopen every file.
type InfoCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]CacheEntry
	dirty   bool

	// Stats
	hits   int
	misses int
}

// CachePath returns where the cache for projectDir lives.
func CachePath(projectDir string) string {
	return filepath.Join(projectDir, cacheDirName, cacheFileName)
}

// OpenInfoCache loads the cache of projectDir. A missing file yields an
// empty cache.
func OpenInfoCache(projectDir string) (*InfoCache, error) {
	c := &InfoCache{
		path:    CachePath(projectDir),
		entries: make(map[string]CacheEntry),
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset info cache: %w", err)
	}
	if err := c.decode(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the cached entry for path without touching the file.
func (c *InfoCache) Get(path string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(path)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e, ok
}

// Add returns the entry for the asset at path, rereading its header when the
// file changed since it was cached.
func (c *InfoCache) Add(path string) (CacheEntry, error) {
	k := key(path)
	st, err := os.Stat(k)
	if err != nil {
		return CacheEntry{}, err
	}
	mod := st.ModTime()

	c.mu.Lock()
	old, ok := c.entries[k]
	c.mu.Unlock()
	if ok && old.ModTime.Equal(mod) {
		return old, nil
	}

	// Header reads happen outside the lock.
	a, err := formats.ReadAssetInfo(k)
	if err != nil {
		return CacheEntry{}, err
	}
	e := CacheEntry{
		Type:       a.Type,
		ID:         a.ID,
		ImportDate: a.ImportDate,
		ModTime:    mod,
		Icon:       a.Icon,
		Hash:       a.Hash,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = e
	c.dirty = true
	return e, nil
}

// Remove forgets path.
func (c *InfoCache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(path)
	if _, ok := c.entries[k]; ok {
		delete(c.entries, k)
		c.dirty = true
	}
}

// Retain forgets every entry whose path is not in paths.
func (c *InfoCache) Retain(paths []string) {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[key(p)] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if !keep[k] {
			delete(c.entries, k)
			c.dirty = true
		}
	}
}

// Len returns the number of cached entries.
func (c *InfoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns lookup statistics.
func (c *InfoCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Save writes the cache if anything changed since it was loaded.
func (c *InfoCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	if err := formats.WriteFileAtomic(c.path, c.encode(), 0644); err != nil {
		return fmt.Errorf("writing asset info cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Close saves the cache.
func (c *InfoCache) Close() error {
	return c.Save()
}

func (c *InfoCache) encode() []byte {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := binio.NewWriter(64 * len(keys))
	w.WriteBytes([]byte(cacheMagic))
	w.WriteUint32(cacheVersion)
	w.WriteInt32(int32(len(keys)))
	for _, k := range keys {
		e := c.entries[k]
		w.WriteString(k)
		w.WriteInt32(int32(e.Type))
		w.WriteBytes(e.ID[:])
		w.WriteInt64(e.ImportDate.UnixMilli())
		w.WriteInt64(e.ModTime.UnixNano())
		w.WriteInt32(int32(len(e.Icon)))
		w.WriteBytes(e.Icon)
		w.WriteBytes(e.Hash[:])
	}
	return w.Bytes()
}

func (c *InfoCache) decode(data []byte) error {
	r := binio.NewReader(data)
	magic := r.ReadBytes(len(cacheMagic))
	version := r.ReadUint32()
	if r.Err() != nil || string(magic) != cacheMagic || version != cacheVersion {
		return fmt.Errorf("%w: bad header", ErrCorruptCache)
	}

	count := r.ReadInt32()
	if count < 0 {
		return fmt.Errorf("%w: negative entry count", ErrCorruptCache)
	}
	for i := int32(0); i < count; i++ {
		k, ok := r.ReadString()
		if !ok {
			return fmt.Errorf("%w: entry %d: bad path", ErrCorruptCache, i)
		}
		typ := geometry.AssetType(r.ReadInt32())
		id := r.ReadBytes(len(uuid.UUID{}))
		imported := r.ReadInt64()
		mod := r.ReadInt64()
		iconLen := r.ReadInt32()
		if iconLen < 0 {
			return fmt.Errorf("%w: entry %d: negative icon length", ErrCorruptCache, i)
		}
		icon := r.ReadBytes(int(iconLen))
		hash := r.ReadBytes(contenthash.Size)
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrCorruptCache, i, err)
		}
		d, _ := contenthash.FromBytes(hash)
		uid, _ := uuid.FromBytes(id)
		c.entries[k] = CacheEntry{
			Type:       typ,
			ID:         uid,
			ImportDate: time.UnixMilli(imported),
			ModTime:    time.Unix(0, mod),
			Icon:       icon,
			Hash:       d,
		}
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptCache, r.Len())
	}
	return nil
}
