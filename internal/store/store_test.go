package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

func records(prefix string, n int) []domain.CatalogRecord {
	out := make([]domain.CatalogRecord, n)
	for i := range out {
		out[i] = domain.CatalogRecord{
			ID:       fmt.Sprint(i + 1),
			Position: i,
			Title:    fmt.Sprintf("%s %d", prefix, i+1),
		}
	}
	return out
}

func TestStore_EmptyAtStart(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, uint64(0), s.Version())
	assert.Empty(t, s.All())

	_, ok := s.Get("1")
	assert.False(t, ok)
}

func TestStore_ReplaceAllAndLookup(t *testing.T) {
	s := New()
	v := s.ReplaceAll(records("old", 3))
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, 3, s.Count())

	rec, ok := s.Get("2")
	require.True(t, ok)
	assert.Equal(t, "old 2", rec.Title)

	all := s.All()
	require.Len(t, all, 3)
	for i, r := range all {
		assert.Equal(t, i, r.Position, "All returns ingestion order")
	}

	v = s.ReplaceAll(records("new", 1))
	assert.Equal(t, uint64(2), v)
	assert.Equal(t, 1, s.Count())
	_, ok = s.Get("2")
	assert.False(t, ok, "old ids are gone after a replace")
}

func TestStore_ReplaceAllCopiesInput(t *testing.T) {
	s := New()
	in := records("x", 2)
	s.ReplaceAll(in)
	in[0].Title = "mutated"

	rec, _ := s.Get("1")
	assert.Equal(t, "x 1", rec.Title)
}

// TestStore_NoTornReads hammers the store with readers while a writer keeps
// swapping between two datasets of different sizes and prefixes. Every
// snapshot a reader sees must be entirely one or the other.
func TestStore_NoTornReads(t *testing.T) {
	s := New()
	a := records("a", 10)
	b := records("b", 25)
	s.ReplaceAll(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				s.ReplaceAll(b)
			} else {
				s.ReplaceAll(a)
			}
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				prefix := snap.Records[0].Title[:1]
				want := map[string]int{"a": 10, "b": 25}[prefix]
				if len(snap.Records) != want {
					t.Errorf("torn snapshot: prefix %s with %d records", prefix, len(snap.Records))
					return
				}
				for _, rec := range snap.Records {
					if rec.Title[:1] != prefix {
						t.Errorf("torn snapshot: mixed prefixes in version %d", snap.Version)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(501), s.Version())
}
