// Package buildserver exposes one build's per-stage progress events to
// remote clients over a websocket, for a companion dashboard to tail a
// long CafeLoader build. Optional, off by default.
package buildserver

import (
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// Event is one build-stage transition, matching the stages
// internal/build.Orchestrator reports through its StageObserver hook:
// resolve, compile, link, splice, hooks, verify, crc, write.
type Event struct {
	Target string `json:"target"`
	Stage  string `json:"stage"`
}

// Server fans stage events out to every connected websocket client.
type Server struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

// New returns a Server ready to accept connections and broadcasts.
func New() *Server {
	return &Server{clients: make(map[*websocket.Conn]chan Event)}
}

// Observe satisfies the build.Orchestrator.StageObserver signature,
// letting a Server be wired in directly as `orch.StageObserver = srv.Observe`.
func (s *Server) Observe(target, stage string) {
	s.broadcast(Event{Target: target, Stage: stage})
}

func (s *Server) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- ev:
		default:
			// Slow client: drop rather than block the build.
		}
	}
}

func (s *Server) serve(ws *websocket.Conn) {
	ch := make(chan Event, 32)

	s.mu.Lock()
	s.clients[ws] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, ws)
		s.mu.Unlock()
		close(ch)
	}()

	for ev := range ch {
		if err := websocket.JSON.Send(ws, ev); err != nil {
			return
		}
	}
}

// Handler returns the websocket endpoint serving Event JSON frames.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serve)
}

// ListenAndServe mounts the endpoint at /build and serves addr, blocking
// until the listener fails. Intended to back `clpc --serve :8099`.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/build", s.Handler())
	return http.ListenAndServe(addr, mux)
}
