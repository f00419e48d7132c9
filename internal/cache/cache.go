// Package cache stores ingested catalog datasets.
// It keeps the current dataset in memory for the session and persists it
// (as a JSON file or in SQLite) so a restart with unchanged shards can skip
// parsing and normalization.
//
// The Cache interface allows us to swap implementations for testing.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// ErrNotFound is returned when a requested dataset doesn't exist.
var ErrNotFound = errors.New("dataset not found")

// ErrVersionMismatch is returned when the cache version doesn't match.
var ErrVersionMismatch = errors.New("cache version mismatch (delete the cache and re-ingest)")

// Cache defines how datasets are stored and retrieved.
// Having this as an interface lets us create mock implementations for testing.
type Cache interface {
	// Get retrieves a dataset from memory (fast path).
	// Returns ErrNotFound if not in memory.
	Get(name string) (*domain.Dataset, error)

	// Set stores a dataset in memory.
	Set(name string, ds *domain.Dataset)

	// LoadFromDisk retrieves a dataset from persistent storage.
	// Returns ErrNotFound if nothing was saved under name.
	// Returns ErrVersionMismatch if it was saved by an older format.
	LoadFromDisk(name string) (*domain.Dataset, error)

	// SaveToDisk persists a dataset for future sessions.
	SaveToDisk(name string, ds *domain.Dataset) error
}

// memory is the in-session layer shared by every Cache implementation.
type memory struct {
	mu  sync.RWMutex
	mem map[string]*domain.Dataset
}

func newMemory() memory {
	return memory{mem: make(map[string]*domain.Dataset)}
}

// Get retrieves a dataset from the in-memory cache.
func (m *memory) Get(name string) (*domain.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds, ok := m.mem[name]
	if !ok {
		return nil, ErrNotFound
	}
	return ds, nil
}

// Set stores a dataset in the in-memory cache.
func (m *memory) Set(name string, ds *domain.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mem[name] = ds
}

// FileCache implements Cache using one JSON file per dataset.
type FileCache struct {
	memory
	cacheDir string // Directory where .dataset.json files are stored
}

// NewFileCache creates a new FileCache that stores files in the given directory.
// The directory is created if it doesn't exist.
func NewFileCache(cacheDir string) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{
		memory:   newMemory(),
		cacheDir: cacheDir,
	}, nil
}

// datasetPath returns the file path for a given dataset name.
func (c *FileCache) datasetPath(name string) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("%s.dataset.json", name))
}

// LoadFromDisk loads a dataset from the cache directory.
func (c *FileCache) LoadFromDisk(name string) (*domain.Dataset, error) {
	data, err := os.ReadFile(c.datasetPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return decode(data)
}

// SaveToDisk writes the dataset next to a temporary file and renames it into
// place, so a crash never leaves a truncated cache behind.
func (c *FileCache) SaveToDisk(name string, ds *domain.Dataset) error {
	data, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}

	path := c.datasetPath(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// decode parses a persisted dataset and rejects incompatible versions.
func decode(data []byte) (*domain.Dataset, error) {
	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	if ds.Version != domain.CacheVersion {
		return nil, ErrVersionMismatch
	}
	return &ds, nil
}
