package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Dependency is one entry from a photon's "photon:require <module> <version>"
// docblock directives, normalized for cache-key hashing.
type Dependency struct {
	Module  string
	Version string
}

// Cache is a content-addressed directory of compiled plugin artifacts.
// Entries never expire by time, only by hash miss, per spec section 4.B.
type Cache struct {
	dir string
}

// NewCache opens (creating if necessary) a compile cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Key computes the cache key for a source file and its declared
// dependencies: hash(sourceBytes || normalizedDependencyList). Dependencies
// are sorted so declaration order in the source never affects the hash.
func Key(source []byte, deps []Dependency) string {
	sorted := append([]Dependency{}, deps...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Module != sorted[j].Module {
			return sorted[i].Module < sorted[j].Module
		}
		return sorted[i].Version < sorted[j].Version
	})

	h := sha256.New()
	h.Write(source)
	for _, d := range sorted {
		h.Write([]byte(d.Module))
		h.Write([]byte{0})
		h.Write([]byte(d.Version))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the artifact path for a cache key; it may not exist yet.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, key+".so")
}

// Has reports whether an artifact is already cached for key.
func (c *Cache) Has(key string) bool {
	_, err := os.Stat(c.Path(key))
	return err == nil
}

// Store atomically installs the artifact at tmpPath under key, via
// rename-from-temp-file so concurrent readers never observe a partial
// write.
func (c *Cache) Store(key, tmpPath string) (string, error) {
	dst := c.Path(key)
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("install cache artifact: %w", err)
	}
	return dst, nil
}
