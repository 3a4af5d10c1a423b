package progress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/script"
)

func TestServer_SubscribeAndReceive(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.WSHandler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: Version}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Let the handler register the subscriber before publishing.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		n := len(s.subs)
		s.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	blocks := int64(10)
	cmd := script.NewRaw("say hi")
	s.Publish("run-9", 1, 2, cmd, protocol.CommandResult{Success: true, BlocksAffected: &blocks})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "DONE" || ev.RunID != "run-9" || ev.Index != 1 || ev.Total != 2 {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Command != "say hi" || !ev.Success || ev.BlocksAffected == nil || *ev.BlocksAffected != 10 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.WSHandler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(SubscribeMsg{Type: "NOPE", ProtocolVersion: Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close on bad handshake")
	}
}
