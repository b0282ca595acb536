package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FreedomSnow/sinoname/internal/cookie"
	"github.com/FreedomSnow/sinoname/internal/session"
	"github.com/FreedomSnow/sinoname/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminEndpoint wires a handler the way buildHTTPHandler does: session
// middleware outermost, then the admin check.
func adminEndpoint(codec *session.Codec, adminEmails []string, handler http.HandlerFunc) http.Handler {
	return ChainMiddleware(handler,
		NewAdminRequiredMiddleware(adminEmails),
		NewSessionRequiredMiddleware(codec),
	)
}

func requestWithSession(t *testing.T, codec *session.Codec, method, target, body, email string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if email != "" {
		value, err := codec.Encode(session.Record{
			User:        session.User{ID: "subject-admin", Name: "Admin", Email: email},
			AccessToken: "provider-access-token",
			ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
		})
		require.NoError(t, err)
		r.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: value})
	}
	return r
}

func seedUser(t *testing.T, store storage.Storage, id, email string) {
	t.Helper()
	require.NoError(t, store.UpsertUser(context.Background(), storage.UserUpsert{
		ID:       id,
		Provider: "stub",
		Email:    email,
		Name:     "Seeded User",
	}))
}

func TestAdminUsersHandler_ListsUsers(t *testing.T) {
	codec := newTestCodec(t)
	store := storage.NewMemoryStorage()
	seedUser(t, store, "subject-1", "one@example.com")
	seedUser(t, store, "subject-2", "two@example.com")

	endpoint := adminEndpoint(codec, []string{"admin@example.com"}, NewAdminHandlers(store).UsersHandler)
	rec := httptest.NewRecorder()
	endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodGet, "/api/admin/users", "", "admin@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp usersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 2)

	emails := []string{resp.Users[0].Email, resp.Users[1].Email}
	assert.ElementsMatch(t, []string{"one@example.com", "two@example.com"}, emails)
}

func TestAdminEndpoint_AccessControl(t *testing.T) {
	tests := []struct {
		name         string
		sessionEmail string
		wantStatus   int
	}{
		{name: "no_session", sessionEmail: "", wantStatus: http.StatusUnauthorized},
		{name: "non_admin", sessionEmail: "user@example.com", wantStatus: http.StatusForbidden},
		{name: "admin", sessionEmail: "admin@example.com", wantStatus: http.StatusOK},
		{name: "admin_case_insensitive", sessionEmail: "Admin@Example.COM", wantStatus: http.StatusOK},
	}

	codec := newTestCodec(t)
	store := storage.NewMemoryStorage()
	endpoint := adminEndpoint(codec, []string{"ADMIN@example.com"}, NewAdminHandlers(store).UsersHandler)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodGet, "/api/admin/users", "", tt.sessionEmail))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdminDeleteUserHandler(t *testing.T) {
	codec := newTestCodec(t)
	store := storage.NewMemoryStorage()
	seedUser(t, store, "subject-1", "one@example.com")

	endpoint := adminEndpoint(codec, []string{"admin@example.com"}, NewAdminHandlers(store).DeleteUserHandler)

	rec := httptest.NewRecorder()
	endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodPost, "/api/admin/users/delete", `{"id":"subject-1"}`, "admin@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := store.GetUser(context.Background(), "subject-1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	t.Run("unknown_user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodPost, "/api/admin/users/delete", `{"id":"nope"}`, "admin@example.com"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodPost, "/api/admin/users/delete", `{}`, "admin@example.com"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminEventsHandler(t *testing.T) {
	codec := newTestCodec(t)
	store := storage.NewMemoryStorage()
	// Explicit IDs pin the chronological order
	require.NoError(t, store.RecordAuthEvent(context.Background(), storage.AuthEvent{ID: "event-1", Kind: storage.EventLoginStarted}))
	require.NoError(t, store.RecordAuthEvent(context.Background(), storage.AuthEvent{ID: "event-2", Kind: storage.EventLoginSucceeded}))

	endpoint := adminEndpoint(codec, []string{"admin@example.com"}, NewAdminHandlers(store).EventsHandler)

	rec := httptest.NewRecorder()
	endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodGet, "/api/admin/events?limit=1", "", "admin@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Events, 1)
	// Newest first
	assert.Equal(t, storage.EventLoginSucceeded, resp.Events[0].Kind)

	t.Run("bad_limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		endpoint.ServeHTTP(rec, requestWithSession(t, codec, http.MethodGet, "/api/admin/events?limit=zero", "", "admin@example.com"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
