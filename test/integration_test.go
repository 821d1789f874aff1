//go:build integration

package test

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lucasfontes/teamsbridge/internal/bridge"
	"github.com/lucasfontes/teamsbridge/internal/teams"
)

// stubEndpoint mimics the Teams IPC endpoint: accepts the upgrade and
// acknowledges every request by echoing its correlation id.
type stubEndpoint struct {
	srv *httptest.Server

	mu      sync.Mutex
	methods []string
}

func newStubEndpoint(t *testing.T) *stubEndpoint {
	t.Helper()
	se := &stubEndpoint{}
	se.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"teams.microsoft.com"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req struct {
				ID     string `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			se.mu.Lock()
			se.methods = append(se.methods, req.Method)
			se.mu.Unlock()
			reply, _ := json.Marshal(map[string]interface{}{"id": req.ID, "result": true})
			if err := conn.Write(ctx, websocket.MessageText, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(se.srv.Close)
	return se
}

func (se *stubEndpoint) port(t *testing.T) int {
	t.Helper()
	return se.srv.Listener.Addr().(*net.TCPAddr).Port
}

func (se *stubEndpoint) seen() []string {
	se.mu.Lock()
	defer se.mu.Unlock()
	return append([]string(nil), se.methods...)
}

func TestIntegration_DiscoverConnectAndSetStatus(t *testing.T) {
	endpoint := newStubEndpoint(t)

	// Point the locator's fast path at the stub through a desktop config.
	configPath := filepath.Join(t.TempDir(), "desktop-config.json")
	content := fmt.Sprintf(`{"webSocketPort": %d}`, endpoint.port(t))
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	prober := teams.NewProber(t.Logf)
	locator := teams.NewLocator(prober, t.Logf)
	locator.ConfigPath = configPath
	client := teams.NewClient(t.Logf)

	sup := bridge.New(bridge.Config{
		BaseDelay:   10 * time.Millisecond,
		MaxAttempts: 3,
	}, locator, client, t.Logf)
	defer sup.Close()

	connected := make(chan int, 1)
	changed := make(chan teams.Status, 1)
	sup.Events().OnConnect(func(port int) { connected <- port })
	sup.Events().OnStatusChange(func(st teams.Status) { changed <- st })

	sup.Start()
	sup.Connect()

	select {
	case port := <-connected:
		if port != endpoint.port(t) {
			t.Fatalf("connected to port %d, want %d", port, endpoint.port(t))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection")
	}

	if err := sup.SendStatus(teams.StatusDoNotDisturb); err != nil {
		t.Fatalf("SendStatus failed: %v", err)
	}
	select {
	case st := <-changed:
		if st != teams.StatusDoNotDisturb {
			t.Fatalf("status change reported %v", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for status change event")
	}

	methods := endpoint.seen()
	if len(methods) != 2 || methods[0] != "ping" || methods[1] != "setUserPresence" {
		t.Fatalf("endpoint saw %v, want [ping setUserPresence]", methods)
	}
}
