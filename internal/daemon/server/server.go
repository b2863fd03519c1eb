// Package server provides the HTTP server for the marksync daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/marksync/config"
	"github.com/grovetools/marksync/internal/daemon/engine"
	"github.com/grovetools/marksync/pkg/daemon"
	"github.com/sirupsen/logrus"
)

const (
	// writeTimeout bounds a single websocket write.
	writeTimeout = 10 * time.Second
	// pingInterval keeps idle stream connections alive.
	pingInterval = 30 * time.Second
)

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger   *logrus.Entry
	server   *http.Server
	engine   *engine.Engine
	settings *config.Settings
	upgrader websocket.Upgrader

	mu       sync.Mutex
	shutdown bool
	// done ends open streams; hijacked connections outlive http.Server.Shutdown.
	done chan struct{}
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		done:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			// The socket is private to the user; there is no browser origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetEngine sets the sync engine for the server.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetSettings sets the running settings exposed at /api/settings. The daemon
// calls it again after a reload.
func (s *Server) SetSettings(settings *config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/api/flush", s.handleFlush)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/settings", s.handleSettings)
	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return listener.Close()
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	err := srv.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	if !s.shutdown {
		s.shutdown = true
		close(s.done)
	}
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requireEngine(w http.ResponseWriter) bool {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleStatus returns the engine status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}
	writeJSON(w, s.engine.Status())
}

// handleState returns the activity state, including recent outcomes.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}
	writeJSON(w, s.engine.Activity().Get())
}

// handleSend runs an interactive cycle. The response is always 200 with a
// bridge envelope; send failures are values, not HTTP errors.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireEngine(w) {
		return
	}

	out, err := s.engine.Send(r.Context())
	resp := daemon.NewBridgeResponse(out, err)
	s.logger.WithFields(logrus.Fields{
		"success": resp.Success,
		"count":   out.Count,
	}).Debug("Interactive send relayed")
	writeJSON(w, resp)
}

// handleFlush fires the pending window now.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireEngine(w) {
		return
	}
	writeJSON(w, daemon.FlushResult{Flushed: s.engine.Flush()})
}

// handleSettings returns the running settings as JSON.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()
	if settings == nil {
		http.Error(w, "settings not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, settings)
}

// handleStream upgrades to a websocket and pushes activity updates as JSON
// text messages until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.requireEngine(w) {
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.logger.WithError(err).Debug("Stream upgrade failed")
		return
	}
	defer ws.Close()

	activity := s.engine.Activity()
	ch := activity.Subscribe()
	defer activity.Unsubscribe(ch)

	s.logger.Debug("Stream client connected")

	// The client never sends data; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			s.logger.Debug("Stream client disconnected")
			return
		case <-s.done:
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
				time.Now().Add(time.Second))
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(update); err != nil {
				// A websocket write deadline cannot be recovered.
				s.logger.WithError(err).Debug("Stream write failed")
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
