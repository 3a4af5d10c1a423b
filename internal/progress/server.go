// Package progress streams per-command build progress over a loopback
// websocket so a viewer can follow long batch executions live.
package progress

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/script"
)

const Version = "1.0"

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Event is one broadcast progress update.
type Event struct {
	Type           string `json:"type"` // PROGRESS or DONE
	RunID          string `json:"run_id"`
	Index          int    `json:"index"`
	Total          int    `json:"total"`
	Command        string `json:"command"`
	Success        bool   `json:"success"`
	BlocksAffected *int64 `json:"blocks_affected,omitempty"`
	ElapsedMS      int64  `json:"elapsed_ms"`
}

type Server struct {
	log      *log.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[uint64]chan []byte
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
		subs: map[uint64]chan []byte{},
	}
}

// Publish broadcasts one event. Slow subscribers drop events rather than
// stalling execution.
func (s *Server) Publish(runID string, index, total int, cmd script.Command, res protocol.CommandResult) {
	ev := Event{
		Type:           "PROGRESS",
		RunID:          runID,
		Index:          index,
		Total:          total,
		Command:        cmd.Text(),
		Success:        res.Success,
		BlocksAffected: res.BlocksAffected,
		ElapsedMS:      res.Elapsed.Milliseconds(),
	}
	if index == total-1 {
		ev.Type = "DONE"
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- b:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != Version {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"),
				time.Now().Add(time.Second))
			return
		}

		id := s.nextID.Add(1)
		out := make(chan []byte, 256)
		s.mu.Lock()
		s.subs[id] = out
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()

		for b := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// Serve runs the feed on addr until the listener fails. Callers run it in
// a goroutine next to batch execution.
func (s *Server) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/progress", s.WSHandler())
	if s.log != nil {
		s.log.Printf("progress feed listening on %s", addr)
	}
	return http.ListenAndServe(addr, mux)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
