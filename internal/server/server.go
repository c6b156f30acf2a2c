// Package server streams session events to browsers over WebSocket and
// serves the status page and the config API.
package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/events"
	"github.com/shaunagostinho/geofix/internal/location"
)

// Status is the snapshot served on /api/status.
type Status struct {
	Waiting       bool             `json:"waiting"`
	DialogShowing bool             `json:"dialogShowing"`
	Provider      string           `json:"provider"`
	Last          *location.Sample `json:"last,omitempty"`
}

// StatusSource reads the session state, typically by hopping onto the loop.
type StatusSource interface {
	Status(ctx context.Context) (Status, error)
}

// StatusFunc adapts a function to StatusSource.
type StatusFunc func(ctx context.Context) (Status, error)

func (f StatusFunc) Status(ctx context.Context) (Status, error) { return f(ctx) }

// Server broadcasts session events to all WebSocket clients.
type Server struct {
	cfg    *config.File
	status StatusSource
	webFS  fs.FS
	logger *zap.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	lastMu sync.Mutex
	last   *location.Sample
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Event  *events.Event    `json:"event,omitempty"`
	Config json.RawMessage  `json:"config,omitempty"`
	Last   *location.Sample `json:"last,omitempty"`
	Stamp  int64            `json:"stamp"` // Unix ms
}

var _ events.Sink = (*Server)(nil)

// New creates a new Server. webFS may be nil.
func New(cfg *config.File, status StatusSource, webFS fs.FS, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		status:  status,
		webFS:   webFS,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler routes the static files, the WebSocket and the APIs.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	return mux
}

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Server.ListenAddr
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Publish broadcasts e and remembers the latest location.
func (s *Server) Publish(e events.Event) {
	if e.Type == events.TypeLocation && e.Location != nil {
		fix := *e.Location
		s.lastMu.Lock()
		s.last = &fix
		s.lastMu.Unlock()
	}
	s.broadcast(Frame{Event: &e, Stamp: e.Stamp})
}

func (s *Server) configJSON() json.RawMessage {
	data, err := s.cfg.ToJSON()
	if err != nil {
		s.logger.Error("could not encode config", zap.Error(err))
		return nil
	}
	return data
}

func (s *Server) lastFix() *location.Sample {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Info("ws upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Send config and the latest fix before the client joins the broadcast
	// so they always arrive first.
	hello := Frame{Config: s.configJSON(), Last: s.lastFix(), Stamp: time.Now().UnixMilli()}
	if data, err := json.Marshal(&hello); err == nil {
		client.send <- data
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("ws client connected", zap.Int("total", total))

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive, detects disconnects)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			close(client.send)
			s.clientsMu.Unlock()
			s.logger.Debug("ws client disconnected", zap.Int("total", total))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var st Status
	if s.status != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		var err error
		if st, err = s.status.Status(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	if st.Last == nil {
		st.Last = s.lastFix()
	}
	writeJSON(w, st)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.cfg.Save(); err != nil {
			s.logger.Warn("config save failed", zap.Error(err))
		}
		// Changes apply to the next session.
		s.broadcast(Frame{Config: s.configJSON(), Stamp: time.Now().UnixMilli()})

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(&frame)
	if err != nil {
		s.logger.Error("could not encode frame", zap.Error(err))
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
