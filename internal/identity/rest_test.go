package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "api-key" {
			t.Errorf("Expected credential as query parameter, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/accounts:signUp":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"localId": "fresh-anon-uid",
				"idToken": "id-token-1",
			})
		case "/accounts:signInWithCustomToken":
			var body struct {
				Token string `json:"token"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Token != "custom-token" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"idToken": "id-token-2",
			})
		case "/accounts:lookup":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{"localId": "custom-uid"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestRESTBackendAnonymousSignIn(t *testing.T) {
	server := newIdentityServer(t)
	defer server.Close()

	backend := NewRESTBackend(server.URL, "api-key")

	principal, err := backend.SignInAnonymously(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-anon-uid", principal.ID)
	assert.True(t, principal.Anonymous)
}

func TestRESTBackendTokenSignIn(t *testing.T) {
	server := newIdentityServer(t)
	defer server.Close()

	backend := NewRESTBackend(server.URL, "api-key")

	principal, err := backend.SignInWithToken(context.Background(), "custom-token")
	require.NoError(t, err)
	assert.Equal(t, "custom-uid", principal.ID)
	assert.False(t, principal.Anonymous)
}

func TestRESTBackendRejectedToken(t *testing.T) {
	server := newIdentityServer(t)
	defer server.Close()

	backend := NewRESTBackend(server.URL, "api-key")

	_, err := backend.SignInWithToken(context.Background(), "wrong-token")
	assert.Error(t, err)
}

func TestRESTBackendSubscribeDeliversCurrent(t *testing.T) {
	server := newIdentityServer(t)
	defer server.Close()

	backend := NewRESTBackend(server.URL, "api-key")

	var deliveries []*Principal
	cancel := backend.Subscribe(func(p *Principal) {
		deliveries = append(deliveries, p)
	})
	defer cancel()

	// The current (absent) principal is delivered immediately.
	require.Len(t, deliveries, 1)
	assert.Nil(t, deliveries[0])

	_, err := backend.SignInAnonymously(context.Background())
	require.NoError(t, err)

	require.Len(t, deliveries, 2)
	assert.Equal(t, "fresh-anon-uid", deliveries[1].ID)
}
