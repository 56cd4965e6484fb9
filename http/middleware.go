package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/session"
)

// SessionCookie is the cookie carrying the session ID.
const SessionCookie = "sessionId"

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor dams.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by SessionMiddleware.
func ActorFromContext(ctx context.Context) (dams.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(dams.Actor)
	return actor, ok
}

// sessionID reads the session ID from the cookie, falling back to an
// "Authorization: Bearer" header.
func sessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// SessionMiddleware resolves the request's session into a dams.Actor and
// rejects the request with 401 when there is none.
func SessionMiddleware(store session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionID(r)
			if id == "" {
				HandleError(w, dams.ErrUnauthorized)
				return
			}

			sess, err := store.Get(r.Context(), id)
			if err != nil {
				if errors.Is(err, session.ErrSessionNotFound) {
					HandleError(w, dams.ErrUnauthorized)
					return
				}
				HandleError(w, err)
				return
			}

			actor := sess.Actor()
			if !actor.IsValid() {
				slog.Warn("session carries invalid actor", "user_id", sess.UserID, "role", sess.Role)
				HandleError(w, dams.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
