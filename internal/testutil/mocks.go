// Package testutil provides shared test helpers and mock implementations.
// This avoids duplicating mock code across test files.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// ErrNotFound is returned by mocks when a resource doesn't exist.
var ErrNotFound = errors.New("not found")

// MockCache is a simple in-memory cache for testing.
// It separates memory and disk caches to test caching behavior.
type MockCache struct {
	mu    sync.Mutex
	Mem   map[string]*domain.Dataset
	Disk  map[string]*domain.Dataset
	Saves int
}

// NewMockCache creates a new MockCache with initialized maps.
func NewMockCache() *MockCache {
	return &MockCache{
		Mem:  make(map[string]*domain.Dataset),
		Disk: make(map[string]*domain.Dataset),
	}
}

func (m *MockCache) Get(name string) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ds, ok := m.Mem[name]; ok {
		return ds, nil
	}
	return nil, ErrNotFound
}

func (m *MockCache) Set(name string, ds *domain.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mem[name] = ds
}

func (m *MockCache) LoadFromDisk(name string) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ds, ok := m.Disk[name]; ok {
		return ds, nil
	}
	return nil, ErrNotFound
}

func (m *MockCache) SaveToDisk(name string, ds *domain.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disk[name] = ds
	m.Saves++
	return nil
}

// MockSource serves shards from memory. Pages listed in Fail return an error.
type MockSource struct {
	mu     sync.Mutex
	Shards map[int][]byte
	Fail   map[int]bool
}

// NewMockSource creates a source over the given page -> body map.
func NewMockSource(shards map[int][]byte) *MockSource {
	return &MockSource{Shards: shards, Fail: map[int]bool{}}
}

func (m *MockSource) Pages(context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages := make([]int, 0, len(m.Shards))
	for p := range m.Shards {
		pages = append(pages, p)
	}
	slices.Sort(pages)
	return pages, nil
}

func (m *MockSource) Fetch(_ context.Context, page int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail[page] {
		return nil, fmt.Errorf("page %d: %w", page, ErrNotFound)
	}
	data, ok := m.Shards[page]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Set replaces one shard's body.
func (m *MockSource) Set(page int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Shards[page] = data
}

// MockClock returns a fixed time for reproducible tests.
type MockClock struct {
	Time time.Time
}

// NewMockClock creates a clock fixed at the given time.
// If t is zero, uses 2024-01-01 00:00:00 UTC.
func NewMockClock(t time.Time) MockClock {
	if t.IsZero() {
		t = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return MockClock{Time: t}
}

func (m MockClock) Now() time.Time { return m.Time }

// ShardJSON encodes raw records as a shard body.
func ShardJSON(records ...domain.RawRecord) []byte {
	data, err := json.Marshal(records)
	if err != nil {
		panic(err)
	}
	return data
}

// Raw builds a raw record with the usual site suffix on the title.
func Raw(title string, tags []string, originalSize, repackSize, languages string) domain.RawRecord {
	return domain.RawRecord{
		Title:       title + " - FitGirl Repacks",
		Tags:        tags,
		Description: title + " is a game. Genres/Tags: " + fmt.Sprint(tags),
		URL:         "https://example.test/" + title,
		ReleaseDate: "2021-01-01",
		Metadata: domain.RawMetadata{
			Companies:    "Studio, Publisher",
			Languages:    languages,
			OriginalSize: originalSize,
			RepackSize:   repackSize,
		},
	}
}

// Catalog is a small, varied raw catalog split over two shards.
func Catalog() map[int][]byte {
	return map[int][]byte{
		1: ShardJSON(
			Raw("Alpha Quest", []string{"Action", "3D"}, "65.2 GB", "from 30.1 GB", "ENG/RUS"),
			Raw("Beta Storm", []string{"Racing", "Cars"}, "35.6 GB", "from 20 GB", "ENG"),
		),
		2: ShardJSON(
			Raw("Gamma Rising", []string{"RPG", "Fantasy"}, "150 GB", "from 80 GB", "MULTI8"),
		),
	}
}
