// Package favorites keeps the user's saved songs, persisted as a single
// JSON document in the key/value store.
package favorites

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"tarareo.app/internal/song"
)

// storageKey is the one key the whole collection lives under.
const storageKey = "favorites"

// KV is the persistence surface favorites needs from the store.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Store holds the favorites collection in insertion order. Safe for
// concurrent use. Every mutation is written through to the KV before it
// becomes visible to readers.
type Store struct {
	kv KV

	mu    sync.RWMutex
	songs []song.Song
}

// Load builds a store from whatever the KV holds. A missing or unreadable
// snapshot starts the collection empty; saved data should never block
// startup.
func Load(kv KV) *Store {
	s := &Store{kv: kv}

	raw, ok, err := kv.Get(storageKey)
	if err != nil {
		log.Printf("Favorites: load: %v", err)
		return s
	}
	if !ok {
		return s
	}
	if err := json.Unmarshal([]byte(raw), &s.songs); err != nil {
		log.Printf("Favorites: corrupt snapshot discarded: %v", err)
		s.songs = nil
	}
	return s
}

// List returns the favorites in the order they were added.
func (s *Store) List() []song.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]song.Song(nil), s.songs...)
}

// IsFavorite reports whether a song with this ID is saved.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// Toggle adds the song if absent and removes it if present, keyed by ID.
// It returns whether the song is a favorite after the call. Toggling twice
// with the same song restores the previous collection.
func (s *Store) Toggle(sg song.Song) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []song.Song
	saved := false
	if i := s.indexOf(sg.ID); i >= 0 {
		next = make([]song.Song, 0, len(s.songs)-1)
		next = append(next, s.songs[:i]...)
		next = append(next, s.songs[i+1:]...)
	} else {
		next = append(append([]song.Song(nil), s.songs...), sg)
		saved = true
	}

	if err := s.persist(next); err != nil {
		return s.indexOf(sg.ID) >= 0, fmt.Errorf("persist favorites: %w", err)
	}
	s.songs = next
	return saved, nil
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i, sg := range s.songs {
		if sg.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(songs []song.Song) error {
	raw, err := json.Marshal(songs)
	if err != nil {
		return err
	}
	return s.kv.Set(storageKey, string(raw))
}
