package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cdchat/internal/proto"
)

func startHTTP(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	s := runTestServer(t, ServerConfig{})
	ts := startHTTP(t, s)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !body["ok"] {
		t.Errorf("Expected ok=true, got %v", body)
	}
}

func TestConnectionsEndpoint(t *testing.T) {
	s := runTestServer(t, ServerConfig{})
	ts := startHTTP(t, s)

	p := dialPeer(t, s)
	p.send(proto.Register{User: "alice"}, proto.Join{Channel: "general"})
	waitFor(t, s, hasUser("alice", "general"))

	resp, err := http.Get(ts.URL + "/connections")
	if err != nil {
		t.Fatalf("GET /connections failed: %v", err)
	}
	defer resp.Body.Close()

	var infos []ConnInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(infos) != 1 || infos[0].User != "alice" || !equalStrings(infos[0].Channels, []string{"general"}) {
		t.Errorf("Unexpected listing %+v", infos)
	}
	if infos[0].ID == "" || infos[0].JoinedAt.IsZero() {
		t.Errorf("Listing lacks identity or join time: %+v", infos[0])
	}
}

func TestWebSocketTransport(t *testing.T) {
	s := runTestServer(t, ServerConfig{})
	ts := startHTTP(t, s)

	ws, err := DialWebSocket("ws" + strings.TrimPrefix(ts.URL, "http") + "/ws")
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer ws.Close()

	if err := proto.Write(ws, proto.Register{User: "web"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := proto.Write(ws, proto.Join{Channel: "general"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	tcp := dialPeer(t, s)
	tcp.send(proto.Register{User: "tcp"}, proto.Join{Channel: "general"})
	waitFor(t, s, hasUser("web", "general"))
	waitFor(t, s, hasUser("tcp", "general"))

	tcp.send(proto.NewText("across transports", "general"))
	ws.SetReadDeadline(time.Now().Add(testTimeout))
	msg, err := proto.Decode(ws)
	if err != nil {
		t.Fatalf("Decode over WebSocket failed: %v", err)
	}
	if text, ok := msg.(proto.Text); !ok || text.Message != "(tcp): across transports" {
		t.Errorf("Unexpected message %#v", msg)
	}
	tcp.expectText("across transports")

	if err := proto.Write(ws, proto.NewText("and back", "general")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	tcp.expectText("(web): and back")

	ws.Close()
	waitFor(t, s, func(infos []ConnInfo) bool { return len(infos) == 1 && infos[0].User == "tcp" })
}
