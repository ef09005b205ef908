// Package appreciation keeps the per-process "appreciated" flag for notes.
// Flags are never persisted and never sent to the service.
package appreciation

import (
	"sync"
)

const keyPrefix = "dropnote:appreciated:"

// Key returns the storage key for noteID.
func Key(noteID string) string {
	return keyPrefix + noteID
}

type Store struct {
	mu    sync.RWMutex
	flags map[string]struct{}
}

func NewStore() *Store {
	return &Store{flags: make(map[string]struct{})}
}

// Mark sets the flag for noteID. It reports true only for the first mark;
// later marks have no effect.
func (s *Store) Mark(noteID string) bool {
	if noteID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key(noteID)
	if _, ok := s.flags[k]; ok {
		return false
	}
	s.flags[k] = struct{}{}
	return true
}

func (s *Store) IsMarked(noteID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[Key(noteID)]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flags)
}

// Clear drops every flag. Called on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = make(map[string]struct{})
}
