package session

import (
	"context"
	"fmt"
)

// MapStore serves sessions from an in-memory map.
// Suitable for configuration file-based sessions in development.
type MapStore struct {
	sessions map[string]Session
}

// NewMapStore creates a new map-based store keyed by session ID.
func NewMapStore(sessions map[string]Session) *MapStore {
	return &MapStore{sessions: sessions}
}

// Get retrieves the session with the given ID from the map.
func (s *MapStore) Get(_ context.Context, id string) (Session, error) {
	sess, found := s.sessions[id]
	if !found {
		return Session{}, fmt.Errorf("get session: %w", ErrSessionNotFound)
	}
	return sess, nil
}
