package lint

import (
	"crypto/sha256"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	tt "github.com/gnolang/smartcast/internal/types"
)

const (
	cacheFile          = "smartcast_cache.gob"
	DefaultCacheMaxAge = 24 * time.Hour
)

type cacheEntry struct {
	// Hash covers the file and the other Go files of its package directory,
	// since facts about a file depend on declarations next to it.
	Hash      string
	Config    string
	Issues    []tt.Issue
	CreatedAt time.Time
}

// Cache keeps per-file issues between runs. An entry is valid while the
// package directory and the config it was computed with are unchanged.
type Cache struct {
	dir    string
	config string
	maxAge time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// OpenCache loads the cache stored in dir, creating dir if needed. Entries
// computed under a different config are never returned.
func OpenCache(dir string, config Config, maxAge time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	fingerprint, err := configHash(config)
	if err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	c := &Cache{
		dir:     dir,
		config:  fingerprint,
		maxAge:  maxAge,
		entries: make(map[string]cacheEntry),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	return c, nil
}

func (c *Cache) load() error {
	file, err := os.Open(filepath.Join(c.dir, cacheFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewDecoder(file).Decode(&c.entries)
}

// Save writes the cache back to its directory.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Create(filepath.Join(c.dir, cacheFile))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

func (c *Cache) Get(filename string) ([]tt.Issue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[filename]
	if !ok {
		return nil, false
	}
	hash, err := packageHash(filename)
	if err != nil || hash != entry.Hash || entry.Config != c.config || time.Since(entry.CreatedAt) > c.maxAge {
		delete(c.entries, filename)
		return nil, false
	}
	return entry.Issues, true
}

func (c *Cache) Put(filename string, issues []tt.Issue) error {
	hash, err := packageHash(filename)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[filename] = cacheEntry{
		Hash:      hash,
		Config:    c.config,
		Issues:    issues,
		CreatedAt: time.Now(),
	}
	return nil
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func configHash(config Config) (string, error) {
	d, err := yaml.Marshal(config)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(d)), nil
}

// packageHash hashes filename followed by the other Go files of its
// directory in name order.
func packageHash(filename string) (string, error) {
	siblings, err := filepath.Glob(filepath.Join(filepath.Dir(filename), "*.go"))
	if err != nil {
		return "", err
	}
	sort.Strings(siblings)

	h := sha256.New()
	for _, name := range append([]string{filename}, siblings...) {
		f, err := os.Open(name)
		if err != nil {
			return "", fmt.Errorf("failed to open file: %w", err)
		}
		_, _ = io.WriteString(h, name)
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("failed to calculate hash: %w", err)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
