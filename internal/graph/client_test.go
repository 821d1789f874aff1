package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfontes/teamsbridge/internal/teams"
)

func testCreds() Credentials {
	return Credentials{ClientID: "client", ClientSecret: "secret", TenantID: "tenant"}
}

// newStubGraph wires a client against stub token and Graph endpoints.
func newStubGraph(t *testing.T, graphHandler http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var tokenRequests int32
	login := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenRequests, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-123",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(login.Close)

	graphSrv := httptest.NewServer(graphHandler)
	t.Cleanup(graphSrv.Close)

	c := NewClient(testCreds(), t.Logf)
	c.loginBase = login.URL
	c.graphBase = graphSrv.URL
	return c, &tokenRequests
}

func TestGetPresence(t *testing.T) {
	c, _ := newStubGraph(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/users/user@example.com/presence", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{
			"availability": "Busy",
			"activity":     "InACall",
		})
	})

	availability, err := c.GetPresence(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Busy", availability)
}

func TestSetStatusMessage(t *testing.T) {
	var body []byte
	c, _ := newStubGraph(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Contains(t, r.URL.Path, "/presence/setStatusMessage")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	err := c.SetStatusMessage(context.Background(), "user-id", teams.StatusDoNotDisturb)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusMessage":{"message":"","status":"DoNotDisturb"}}`, string(body))
}

func TestTokenIsCachedAcrossRequests(t *testing.T) {
	c, tokenRequests := newStubGraph(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"availability": "Available"})
	})

	for i := 0; i < 3; i++ {
		_, err := c.GetPresence(context.Background(), "user-id")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenRequests))
}

func TestTokenRenewedNearExpiry(t *testing.T) {
	c, tokenRequests := newStubGraph(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"availability": "Available"})
	})

	_, err := c.GetPresence(context.Background(), "user-id")
	require.NoError(t, err)

	// Push the cached token inside the renewal margin.
	c.mu.Lock()
	c.tokenExpiry = time.Now().Add(time.Minute)
	c.mu.Unlock()

	_, err = c.GetPresence(context.Background(), "user-id")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(tokenRequests))
}

func TestTokenRequestFailure(t *testing.T) {
	login := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer login.Close()

	c := NewClient(testCreds(), t.Logf)
	c.loginBase = login.URL

	_, err := c.GetPresence(context.Background(), "user-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token request failed")
}

func TestGetPresenceHTTPError(t *testing.T) {
	c, _ := newStubGraph(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})

	_, err := c.GetPresence(context.Background(), "missing-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presence request failed")
}

func TestSetStatusMessageHTTPError(t *testing.T) {
	c, _ := newStubGraph(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})

	err := c.SetStatusMessage(context.Background(), "user-id", teams.StatusBusy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set status failed")
}

func TestLoadCredentialsMissing(t *testing.T) {
	t.Setenv("TEAMSBRIDGE_GRAPH_CLIENT_ID", "")
	t.Setenv("TEAMSBRIDGE_GRAPH_CLIENT_SECRET", "")
	t.Setenv("TEAMSBRIDGE_GRAPH_TENANT_ID", "")

	_, err := LoadCredentials()
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("TEAMSBRIDGE_GRAPH_CLIENT_ID", "id")
	t.Setenv("TEAMSBRIDGE_GRAPH_CLIENT_SECRET", "secret")
	t.Setenv("TEAMSBRIDGE_GRAPH_TENANT_ID", "tenant")

	creds, err := LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, "tenant", creds.TenantID)
}
