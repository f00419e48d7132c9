package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

func dataset(version int) *domain.Dataset {
	return &domain.Dataset{
		Version:     version,
		Fingerprint: "9f1c2b",
		IngestedAt:  time.Now().UTC().Truncate(time.Second), // Truncate for JSON round-trip
		Shards:      3,
		Records: []domain.CatalogRecord{
			{ID: "1", Title: "Alpha Quest - FitGirl Repacks", Genre: []string{"Action"}},
			{ID: "2", Title: "Beta Storm - FitGirl Repacks", Genre: []string{"Racing"}, Position: 1},
		},
	}
}

// caches returns one instance of every implementation, each on its own
// temporary storage.
func caches(t *testing.T) map[string]Cache {
	t.Helper()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	sc, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sc.Close() })
	return map[string]Cache{"file": fc, "sqlite": sc}
}

// TestCache_SetGet verifies in-memory round-trip storage.
func TestCache_SetGet(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			// Before Set, Get should return ErrNotFound
			if _, err := c.Get("catalog"); err != ErrNotFound {
				t.Errorf("Get before Set: expected ErrNotFound, got %v", err)
			}

			ds := dataset(domain.CacheVersion)
			c.Set("catalog", ds)
			got, err := c.Get("catalog")
			if err != nil {
				t.Fatalf("Get after Set: %v", err)
			}
			if got != ds {
				t.Errorf("Get returned a different dataset")
			}
		})
	}
}

// TestCache_DiskRoundTrip verifies saving to and loading from storage.
func TestCache_DiskRoundTrip(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ds := dataset(domain.CacheVersion)
			if err := c.SaveToDisk("catalog", ds); err != nil {
				t.Fatalf("SaveToDisk: %v", err)
			}

			loaded, err := c.LoadFromDisk("catalog")
			if err != nil {
				t.Fatalf("LoadFromDisk: %v", err)
			}
			if loaded.Fingerprint != ds.Fingerprint {
				t.Errorf("Fingerprint mismatch: got %q, want %q", loaded.Fingerprint, ds.Fingerprint)
			}
			if !loaded.IngestedAt.Equal(ds.IngestedAt) {
				t.Errorf("IngestedAt mismatch: got %v, want %v", loaded.IngestedAt, ds.IngestedAt)
			}
			if len(loaded.Records) != len(ds.Records) {
				t.Fatalf("Records length mismatch: got %d, want %d", len(loaded.Records), len(ds.Records))
			}
			if loaded.Records[1].Title != ds.Records[1].Title || loaded.Records[1].Position != 1 {
				t.Errorf("record mismatch: got %+v", loaded.Records[1])
			}

			// Saving again replaces the previous dataset.
			ds.Fingerprint = "other"
			ds.Records = ds.Records[:1]
			if err := c.SaveToDisk("catalog", ds); err != nil {
				t.Fatalf("SaveToDisk again: %v", err)
			}
			loaded, err = c.LoadFromDisk("catalog")
			if err != nil {
				t.Fatalf("LoadFromDisk again: %v", err)
			}
			if loaded.Fingerprint != "other" || len(loaded.Records) != 1 {
				t.Errorf("overwrite not visible: got %q with %d records", loaded.Fingerprint, len(loaded.Records))
			}
		})
	}
}

// TestCache_LoadNotFound verifies behavior when nothing was saved.
func TestCache_LoadNotFound(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := c.LoadFromDisk("nonexistent"); err != ErrNotFound {
				t.Errorf("LoadFromDisk: expected ErrNotFound, got %v", err)
			}
		})
	}
}

// TestCache_VersionMismatch verifies old caches are rejected.
func TestCache_VersionMismatch(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			if err := c.SaveToDisk("old", dataset(domain.CacheVersion+999)); err != nil {
				t.Fatalf("SaveToDisk: %v", err)
			}
			if _, err := c.LoadFromDisk("old"); err != ErrVersionMismatch {
				t.Errorf("LoadFromDisk: expected ErrVersionMismatch, got %v", err)
			}
		})
	}
}

// TestFileCache_NoTempFileLeft verifies the atomic write cleans up after itself.
func TestFileCache_NoTempFileLeft(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	if err := c.SaveToDisk("catalog", dataset(domain.CacheVersion)); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "catalog.dataset.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected files in cache dir: %v", names)
	}
}
