// Package web serves the propbox dashboard over HTTP.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/logging"
	"github.com/sweeney/propbox/internal/status"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Server serves the attribute board over HTTP and websocket.
type Server struct {
	httpServer *http.Server
	board      *status.Board
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// New creates a Server that reads state from board. Metrics are served from
// gatherer at /metrics when it is non-nil.
func New(addr string, board *status.Board, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		board:  board,
		logger: logging.OrNop(logger).Named("web"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/getAttributes", s.handleAttributes)
	mux.HandleFunc("/ws", s.handleWS)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server. Open websockets are not
// tracked by net/http, so their handlers exit when the connection drops.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.board.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Warn("render index failed", zap.Error(err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.board.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	snap := s.board.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatAttributes(snap))
}

// handleWS sends the attribute list on connect and again after every change
// until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	changes, cancel := s.board.Subscribe()
	defer cancel()

	// Reads only serve to notice the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func(msgType int, data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(msgType, data); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !send(websocket.TextMessage, formatAttributes(s.board.Snapshot())) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-changes:
			if !send(websocket.TextMessage, formatAttributes(s.board.Snapshot())) {
				return
			}
		case <-ping.C:
			if !send(websocket.PingMessage, nil) {
				return
			}
		}
	}
}
