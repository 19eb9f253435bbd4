package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache is the digest→reference dedup record shared across workers and,
// for persistent backends, across runs. Implementations must be safe for
// concurrent use; check-then-insert happens under the implementation's own
// lock.
type Cache interface {
	Get(ctx context.Context, digest string) (ContentRef, bool, error)
	Put(ctx context.Context, digest string, ref ContentRef) error
}

// MemoryCache is an in-process Cache. It also backs FileCache.
type MemoryCache struct {
	mu   sync.Mutex
	refs map[string]ContentRef
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{refs: make(map[string]ContentRef)}
}

// Get returns the cached reference for the digest, if any.
func (c *MemoryCache) Get(_ context.Context, digest string) (ContentRef, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.refs[digest]
	return ref, ok, nil
}

// Put records a reference under its digest.
func (c *MemoryCache) Put(_ context.Context, digest string, ref ContentRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[digest] = ref
	return nil
}

// Seed inserts references without going through Put, used to warm the cache
// from a previously written manifest.
func (c *MemoryCache) Seed(refs map[string]ContentRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for digest, ref := range refs {
		c.refs[digest] = ref
	}
}

// Len returns the number of cached digests.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.refs)
}

// FileCache is a Cache persisted to a human-inspectable JSON file. Every Put
// rewrites the file atomically (temp file + rename), so a crash never leaves
// a corrupt cache; a missing file just means an empty cache.
type FileCache struct {
	mu   sync.Mutex
	path string
	refs map[string]ContentRef
}

// OpenFileCache loads the cache file at path, creating an empty cache when
// the file does not exist yet.
func OpenFileCache(path string) (*FileCache, error) {
	c := &FileCache{
		path: path,
		refs: make(map[string]ContentRef),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dedup cache; %w", err)
	}
	if err := json.Unmarshal(data, &c.refs); err != nil {
		return nil, fmt.Errorf("failed to parse dedup cache %q; %w", path, err)
	}
	return c, nil
}

// Get returns the cached reference for the digest, if any.
func (c *FileCache) Get(_ context.Context, digest string) (ContentRef, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.refs[digest]
	return ref, ok, nil
}

// Put records the reference and rewrites the backing file.
func (c *FileCache) Put(_ context.Context, digest string, ref ContentRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs[digest] = ref
	return c.flushLocked()
}

// flushLocked writes the cache file atomically. Caller holds c.mu.
func (c *FileCache) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create dedup cache directory; %w", err)
	}

	data, err := json.MarshalIndent(c.refs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dedup cache; %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write dedup cache; %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to commit dedup cache; %w", err)
	}
	return nil
}
