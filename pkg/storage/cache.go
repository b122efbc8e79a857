package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	filesDir = "files"
	rawsDir  = "raws"

	// ProcessedExt is the extension of every processed cache entry.
	ProcessedExt = ".webp"

	tempSuffix = ".tmp"
)

// Cache handles the media cache layout and processed-file detection
type Cache struct {
	root      string
	processed map[int]bool
	mu        sync.RWMutex
}

// NewCache creates the cache directories under root and scans for
// already processed entries.
func NewCache(root string) (*Cache, error) {
	c := &Cache{
		root:      root,
		processed: make(map[int]bool),
	}
	if err := c.Ensure(); err != nil {
		return nil, err
	}
	if err := c.scan(); err != nil {
		return nil, fmt.Errorf("failed to scan cache: %w", err)
	}
	return c, nil
}

// Ensure creates files/ and files/raws/ if they are missing.
func (c *Cache) Ensure() error {
	if err := os.MkdirAll(c.RawsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

func (c *Cache) scan() error {
	entries, err := os.ReadDir(c.FilesDir())
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, tempSuffix) {
			// Left behind by an encoder that never finished.
			os.Remove(filepath.Join(c.FilesDir(), name))
			continue
		}
		if entry.IsDir() || filepath.Ext(name) != ProcessedExt {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ProcessedExt))
		if err != nil {
			continue
		}
		c.processed[id] = true
	}
	return nil
}

// Root returns the cache root.
func (c *Cache) Root() string { return c.root }

// FilesDir returns <root>/files.
func (c *Cache) FilesDir() string { return filepath.Join(c.root, filesDir) }

// RawsDir returns <root>/files/raws.
func (c *Cache) RawsDir() string { return filepath.Join(c.root, filesDir, rawsDir) }

// CachePath returns the processed path of a post.
func (c *Cache) CachePath(postID int) string {
	return filepath.Join(c.FilesDir(), strconv.Itoa(postID)+ProcessedExt)
}

// TempPath returns where the processed form of a post is written before it
// is committed with Adopt. Entries at this path are never counted as
// processed.
func (c *Cache) TempPath(postID int) string {
	return c.CachePath(postID) + tempSuffix
}

// RawPath returns the download path of a post with the given extension.
func (c *Cache) RawPath(postID int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(c.RawsDir(), fmt.Sprintf("%d.%s", postID, ext))
}

// Has reports whether the post has been processed. The filesystem is
// consulted when the in-memory index has no entry.
func (c *Cache) Has(postID int) bool {
	c.mu.RLock()
	known := c.processed[postID]
	c.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(c.CachePath(postID)); err == nil {
		c.MarkProcessed(postID)
		return true
	}
	return false
}

// MarkProcessed records the post as processed.
func (c *Cache) MarkProcessed(postID int) {
	c.mu.Lock()
	c.processed[postID] = true
	c.mu.Unlock()
}

// Adopt moves src into the processed slot of postID unchanged. The rename
// is atomic, so a processed entry is either complete or absent.
func (c *Cache) Adopt(postID int, src string) error {
	dst := c.CachePath(postID)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s into cache: %w", src, err)
	}
	c.MarkProcessed(postID)
	return nil
}

// RemoveRaws deletes the raw download directory and everything in it.
func (c *Cache) RemoveRaws() error {
	if err := os.RemoveAll(c.RawsDir()); err != nil {
		return fmt.Errorf("failed to remove raw downloads: %w", err)
	}
	return nil
}

// ProcessedCount returns the number of processed entries known to the cache.
func (c *Cache) ProcessedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.processed)
}
