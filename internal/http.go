package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const snapshotTimeout = 5 * time.Second

// Handler returns the HTTP surface: health check, connection listing and
// the WebSocket entry point.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/connections", s.handleConnections)
	r.GET("/ws", s.handleWebSocket)
	return r
}

// ListenHTTP serves Handler on addr in the background.
func (s *Server) ListenHTTP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start http surface: %w", err)
	}
	s.httpAddr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := s.httpServer
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// HTTPAddr returns the HTTP listen address, or nil when the surface is off.
func (s *Server) HTTPAddr() net.Addr {
	return s.httpAddr
}

func (s *Server) closeHTTP() {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Close(); err != nil {
		log.Printf("HTTP server close error: %v", err)
	}
}

func (s *Server) handleConnections(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	defer cancel()

	infos, err := s.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("websocket upgrade:", err)
		return
	}

	conn := newWSConn(ws)
	if err := s.reactor.PostContext(c.Request.Context(), func() { s.addConnection(conn) }); err != nil {
		conn.Close()
	}
}
