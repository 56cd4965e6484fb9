package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSessionsFromFile loads static sessions from a YAML file holding a
// list of entries with session_id, user_id, email, name and role keys.
// Entries without a session ID, user ID or valid role are skipped.
// Returns a map of session ID to session.
func LoadSessionsFromFile(path string) (map[string]Session, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read sessions file: %w", err)
	}

	var list []Session
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse sessions file: %w", err)
	}

	sessions := make(map[string]Session, len(list))
	for _, s := range list {
		if isUsable(s) {
			sessions[s.ID] = s
		}
	}

	return sessions, nil
}

func isUsable(s Session) bool {
	return s.ID != "" && s.Actor().IsValid()
}
