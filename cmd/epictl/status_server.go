package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Martico2432/rlgym-learn/pkg/logx"
)

// statusSnapshot is one point-in-time report published to every connected
// status feed client.
type statusSnapshot struct {
	Step      int `json:"step"`
	Timesteps int `json:"timesteps"`
}

// statusServer serves the live demo-loop status feed: a plain JSON
// snapshot over HTTP GET, and a push feed of the same snapshots over a
// websocket, for a browser-based dashboard to subscribe to.
type statusServer struct {
	addr   string
	logger logx.Logger
	server *http.Server

	mu       sync.Mutex
	latest   statusSnapshot
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]chan statusSnapshot
}

func newStatusServer(addr string, logger logx.Logger) *statusServer {
	s := &statusServer{
		addr:     addr,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  map[*websocket.Conn]chan statusSnapshot{},
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/status/feed", s.handleFeed)
	s.server = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run serves the status feed until ctx is canceled.
func (s *statusServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close shuts the server down immediately, used when the demo loop
// finishes on its own rather than via context cancellation.
func (s *statusServer) Close() {
	_ = s.server.Close()
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snapshot := s.latest
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (s *statusServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Log(logx.LevelWarn, "status feed upgrade failed", "err", err)
		return
	}
	ch := make(chan statusSnapshot, 8)

	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for snapshot := range ch {
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}
}

// publish broadcasts snapshot to the latest-status cache and every
// connected websocket client. Slow clients are dropped rather than
// allowed to block the demo loop.
func (s *statusServer) publish(snapshot statusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snapshot
	for conn, ch := range s.clients {
		select {
		case ch <- snapshot:
		default:
			delete(s.clients, conn)
			close(ch)
		}
	}
}
