package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "nested", "prefs.json"))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	st, err := newStore(t).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{}, st.FavoriteGames)
	assert.Equal(t, []string{}, st.RecentSearches)
}

func TestAddRecent(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.AddRecent("  alpha "))
	require.NoError(t, s.AddRecent("beta"))
	require.NoError(t, s.AddRecent("   "))
	require.NoError(t, s.AddRecent("alpha"))

	got, err := s.Recent()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}

func TestAddRecent_CappedAtMax(t *testing.T) {
	s := newStore(t)
	for i := range 12 {
		require.NoError(t, s.AddRecent(fmt.Sprintf("q%d", i)))
	}

	got, err := s.Recent()
	require.NoError(t, err)
	assert.Len(t, got, MaxRecent)
	assert.Equal(t, "q11", got[0])
	assert.Equal(t, "q2", got[MaxRecent-1])
}

func TestAddRecent_CaseSensitiveDedup(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.AddRecent("Alpha"))
	require.NoError(t, s.AddRecent("alpha"))

	got, _ := s.Recent()
	assert.Equal(t, []string{"alpha", "Alpha"}, got)
}

func TestClearRecent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.AddRecent("alpha"))
	require.NoError(t, s.ClearRecent())

	got, _ := s.Recent()
	assert.Empty(t, got)
}

func TestFavorites(t *testing.T) {
	s := newStore(t)

	on, err := s.ToggleFavorite("Alpha Quest")
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, s.AddFavorite("Beta Storm"))
	require.NoError(t, s.AddFavorite("Beta Storm"))

	favs, _ := s.Favorites()
	assert.Equal(t, []string{"Alpha Quest", "Beta Storm"}, favs)

	on, err = s.ToggleFavorite("Alpha Quest")
	require.NoError(t, err)
	assert.False(t, on)
	require.NoError(t, s.RemoveFavorite("missing"))

	favs, _ = s.Favorites()
	assert.Equal(t, []string{"Beta Storm"}, favs)
}

func TestPersistsAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, Open(path).AddRecent("alpha"))
	require.NoError(t, Open(path).AddFavorite("Alpha Quest"))

	st, err := Open(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, st.RecentSearches)
	assert.Equal(t, []string{"Alpha Quest"}, st.FavoriteGames)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"favoriteGames"`)
	assert.Contains(t, string(raw), `"recentSearches"`)
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path)
	require.NoError(t, s.AddRecent("alpha"))
	got, _ := s.Recent()
	assert.Equal(t, []string{"alpha"}, got)
}

func TestConcurrentWritersDontLoseUpdates(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddFavorite(fmt.Sprintf("game-%d", i)))
		}()
	}
	wg.Wait()

	favs, _ := s.Favorites()
	assert.Len(t, favs, 8)
}
