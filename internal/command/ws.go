package command

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// Server carries the control plane over WebSocket: commands in,
// responses and decoded-frame notifications out. A nil Handler makes
// the server notification-only.
type Server struct {
	addr    string
	path    string
	handler *Handler
	server  *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer creates a WebSocket control server.
func NewServer(addr, path string, h *Handler) *Server {
	if path == "" {
		path = "/ws"
	}
	return &Server{
		addr:    addr,
		path:    path,
		handler: h,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Start starts the WebSocket server.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, websocket.Handler(s.handle))

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     mux,
		ReadTimeout: 0, // connections are long-lived
		IdleTimeout: 0,
	}

	slog.Info("starting control server", "addr", s.addr, "path", s.path)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("control server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the server and drops all connections.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	slog.Info("stopping control server")

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control server shutdown failed: %w", err)
	}
	return nil
}

// Broadcast sends a JSON notification to every connected client.
// Clients that cannot be written to are dropped.
func (s *Server) Broadcast(v any) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := websocket.JSON.Send(c, v); err != nil {
			slog.Debug("dropping slow control client", "error", err)
			s.drop(c)
		}
	}
}

func (s *Server) handle(ws *websocket.Conn) {
	s.mu.Lock()
	s.conns[ws] = struct{}{}
	s.mu.Unlock()
	defer s.drop(ws)

	slog.Debug("control client connected", "remote", ws.Request().RemoteAddr)
	for {
		var cmd Command
		if err := websocket.JSON.Receive(ws, &cmd); err != nil {
			return
		}
		var resp Response
		if s.handler == nil {
			resp = Response{ID: cmd.ID, Error: "publishing disabled on this endpoint"}
		} else {
			resp = s.handler.Handle(cmd)
		}
		if !resp.OK {
			slog.Warn("control command failed", "cmd", cmd.Cmd, "go_cb_ref", cmd.GoCbRef, "error", resp.Error)
		}
		if err := websocket.JSON.Send(ws, resp); err != nil {
			return
		}
	}
}

func (s *Server) drop(ws *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.conns[ws]; ok {
		delete(s.conns, ws)
		ws.Close()
	}
	s.mu.Unlock()
}
