package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/dams"
	damshttp "github.com/sagarc03/dams/http"
	"github.com/sagarc03/dams/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (session.Session, error) {
	return session.Session{}, errors.New("redis: connection refused")
}

func testSessions() session.Store {
	return session.NewMapStore(map[string]session.Session{
		"s-user":  {ID: "s-user", UserID: "u-1", Role: dams.RoleUser},
		"s-admin": {ID: "s-admin", UserID: "u-0", Role: dams.RoleAdmin},
		"s-bad":   {ID: "s-bad", UserID: "u-2", Role: "root"},
	})
}

func actorEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := damshttp.ActorFromContext(r.Context())
		require.True(t, ok, "actor should be attached")
		_, _ = w.Write([]byte(actor.ID + ":" + string(actor.Role)))
	})
}

func TestSessionMiddleware_Cookie(t *testing.T) {
	wrapped := damshttp.SessionMiddleware(testSessions())(actorEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: damshttp.SessionCookie, Value: "s-user"})
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1:user", rec.Body.String())
}

func TestSessionMiddleware_Bearer(t *testing.T) {
	wrapped := damshttp.SessionMiddleware(testSessions())(actorEcho(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer s-admin")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-0:admin", rec.Body.String())
}

func TestSessionMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		store    session.Store
		setup    func(r *http.Request)
		wantCode int
	}{
		{"no credentials", testSessions(), func(*http.Request) {}, http.StatusUnauthorized},
		{"unknown session", testSessions(), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: damshttp.SessionCookie, Value: "nope"})
		}, http.StatusUnauthorized},
		{"invalid role", testSessions(), func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer s-bad")
		}, http.StatusUnauthorized},
		{"non bearer scheme", testSessions(), func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}, http.StatusUnauthorized},
		{"store failure", failingStore{}, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer s-user")
		}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})
			wrapped := damshttp.SessionMiddleware(tt.store)(next)

			req := httptest.NewRequest("GET", "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
