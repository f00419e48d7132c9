// Package prefs persists per-user client state: favorite games and recent
// searches. Everything lives in one small JSON file that is rewritten on
// every change.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// MaxRecent is how many recent searches are remembered.
const MaxRecent = 10

// State is the on-disk document. The keys match what browser clients
// already keep in local storage.
type State struct {
	FavoriteGames  []string `json:"favoriteGames"`
	RecentSearches []string `json:"recentSearches"`
}

// Store reads and writes State. Mutations are serialized and each one
// re-reads the file before writing it back.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open returns a store backed by path. The file is created on first write.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current state. A missing file is an empty state.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Recent returns recent searches, most recent first.
func (s *Store) Recent() ([]string, error) {
	st, err := s.Load()
	return st.RecentSearches, err
}

// Favorites returns the favorite game titles in the order they were added.
func (s *Store) Favorites() ([]string, error) {
	st, err := s.Load()
	return st.FavoriteGames, err
}

// AddRecent records a search. Blank searches are ignored; a search already
// in the list moves to the front. The list is capped at MaxRecent.
func (s *Store) AddRecent(search string) error {
	search = strings.TrimSpace(search)
	if search == "" {
		return nil
	}
	return s.update(func(st *State) {
		st.RecentSearches = slices.DeleteFunc(st.RecentSearches, func(r string) bool { return r == search })
		st.RecentSearches = slices.Insert(st.RecentSearches, 0, search)
		if len(st.RecentSearches) > MaxRecent {
			st.RecentSearches = st.RecentSearches[:MaxRecent]
		}
	})
}

// ClearRecent forgets every recent search.
func (s *Store) ClearRecent() error {
	return s.update(func(st *State) { st.RecentSearches = []string{} })
}

// ToggleFavorite adds title to the favorites or removes it if present, and
// reports whether it is a favorite afterwards.
func (s *Store) ToggleFavorite(title string) (bool, error) {
	var now bool
	err := s.update(func(st *State) {
		if i := slices.Index(st.FavoriteGames, title); i >= 0 {
			st.FavoriteGames = slices.Delete(st.FavoriteGames, i, i+1)
			now = false
			return
		}
		st.FavoriteGames = append(st.FavoriteGames, title)
		now = true
	})
	return now, err
}

// AddFavorite marks title as a favorite. Adding twice is a no-op.
func (s *Store) AddFavorite(title string) error {
	return s.update(func(st *State) {
		if !slices.Contains(st.FavoriteGames, title) {
			st.FavoriteGames = append(st.FavoriteGames, title)
		}
	})
}

// RemoveFavorite unmarks title.
func (s *Store) RemoveFavorite(title string) error {
	return s.update(func(st *State) {
		st.FavoriteGames = slices.DeleteFunc(st.FavoriteGames, func(f string) bool { return f == title })
	})
}

// ─── File I/O ────────────────────────────────────────────────────────────────

func (s *Store) update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	fn(&st)
	return s.write(st)
}

func (s *Store) read() (State, error) {
	st := State{FavoriteGames: []string{}, RecentSearches: []string{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to read prefs: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt file shouldn't lock the user out; start over.
		s.logger.Warn("prefs file unreadable, starting empty", "path", s.path, "error", err)
		return State{FavoriteGames: []string{}, RecentSearches: []string{}}, nil
	}
	if st.FavoriteGames == nil {
		st.FavoriteGames = []string{}
	}
	if st.RecentSearches == nil {
		st.RecentSearches = []string{}
	}
	return st, nil
}

func (s *Store) write(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create prefs directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace prefs: %w", err)
	}
	return nil
}
