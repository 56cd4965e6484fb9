// Package session resolves session IDs presented by HTTP clients into dams
// actors. Sessions are issued elsewhere; this package only reads them, apart
// from RedisStore.Create which backs the "dams session issue" command.
package session

import (
	"context"
	"errors"

	"github.com/sagarc03/dams"
)

// ErrSessionNotFound is returned when a session ID is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the payload stored for one logged in user.
type Session struct {
	ID     string    `json:"-" yaml:"session_id" mapstructure:"session_id"`
	UserID string    `json:"id" yaml:"user_id" mapstructure:"user_id"`
	Email  string    `json:"email" yaml:"email" mapstructure:"email"`
	Name   string    `json:"name" yaml:"name" mapstructure:"name"`
	Role   dams.Role `json:"role" yaml:"role" mapstructure:"role"`
}

// Actor returns the identity the asset service authorizes against.
func (s Session) Actor() dams.Actor {
	return dams.Actor{ID: s.UserID, Role: s.Role}
}

// Store looks up sessions by ID.
type Store interface {
	// Get returns the session for id.
	//
	// Returns:
	//   - error: ErrSessionNotFound if the session doesn't exist, or backend errors
	Get(ctx context.Context, id string) (Session, error)
}
