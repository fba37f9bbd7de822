package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"

	"cdchat/internal/proto"
	"cdchat/internal/reactor"
)

const chatFullMessage = "chat is full, try again later"

// Server accepts chat connections and routes their messages. All connection
// state is touched only from reactor handlers and posted tasks.
type Server struct {
	cfg      ServerConfig
	reactor  *reactor.Reactor
	registry *Registry
	router   *Router
	log      *activityLog
	Logfile  *os.File

	acceptor   *reactor.Acceptor
	httpServer *http.Server
	httpAddr   net.Addr
	closed     bool
}

// NewServer builds a server that logs activity to stdout and cfg.LogFile.
func NewServer(cfg ServerConfig) *Server {
	cfg = cfg.Sanitize()

	logfile, err := OpenLogFile(cfg.LogFile)
	if err != nil {
		log.Printf("Error opening log file: %v", err)
	}

	var out io.Writer = os.Stdout
	if logfile != nil {
		out = io.MultiWriter(os.Stdout, logfile)
	}
	s := newServer(cfg, out)
	s.Logfile = logfile
	return s
}

func newServer(cfg ServerConfig, out io.Writer) *Server {
	activity := newActivityLog(out)
	registry := NewRegistry()
	return &Server{
		cfg:      cfg,
		reactor:  reactor.New(),
		registry: registry,
		router:   newRouter(registry, activity, cfg.WriteTimeout, cfg.EchoOnce),
		log:      activity,
	}
}

func (s *Server) logActivity(message string) {
	s.log.logActivity(message)
}

// Listen binds the TCP listener and starts watching it for connections.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.acceptor = reactor.NewAcceptor(ln)
	if err := s.reactor.Register(s.acceptor, s.accept); err != nil {
		ln.Close()
		return fmt.Errorf("watch listener: %w", err)
	}
	return nil
}

// Addr returns the TCP listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Start listens on the configured addresses and serves until the server is closed.
func (s *Server) Start() error {
	if err := s.Listen(s.cfg.Addr); err != nil {
		return err
	}
	if s.cfg.HTTPAddr != "" {
		if err := s.ListenHTTP(s.cfg.HTTPAddr); err != nil {
			s.shutdown()
			return err
		}
		s.logActivity(fmt.Sprintf("HTTP surface on %s", s.httpAddr))
	}
	s.logActivity(fmt.Sprintf("Server started on %s", s.Addr()))
	return s.Serve(context.Background())
}

// Serve runs the event loop until Close is called or ctx is done, then
// closes the listener and every connection.
func (s *Server) Serve(ctx context.Context) error {
	err := s.reactor.RunForever(ctx)
	// The loop is no longer running, so this goroutine owns the state again.
	s.shutdown()
	return err
}

// Close stops the event loop without waiting for it. Serve then releases
// every connection exactly once; a Serve that has not started yet returns
// right away.
func (s *Server) Close() error {
	s.reactor.Stop()
	return nil
}

// Snapshot returns the live connections as seen from the event loop.
func (s *Server) Snapshot(ctx context.Context) ([]ConnInfo, error) {
	result := make(chan []ConnInfo, 1)
	err := s.reactor.PostContext(ctx, func() {
		result <- s.registry.Snapshot()
	})
	if err != nil {
		return nil, err
	}
	select {
	case infos := <-result:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) shutdown() {
	if s.closed {
		return
	}
	s.closed = true

	if s.acceptor != nil {
		s.reactor.Unregister(s.acceptor)
		s.acceptor.Close()
	}
	for _, c := range s.registry.All() {
		s.disconnect(c)
	}
	s.reactor.Stop()
	s.closeHTTP()
	s.logActivity("Server stopped")
}

func (s *Server) accept(reactor.Source) {
	conn, err := s.acceptor.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			s.reactor.Unregister(s.acceptor)
			return
		}
		log.Printf("Failed to accept connection: %v", err)
		return
	}
	s.addConnection(conn)
}

func (s *Server) addConnection(conn net.Conn) {
	c := newConnection(conn)

	if s.cfg.MaxClients > 0 && s.registry.Len() >= s.cfg.MaxClients {
		c.sendMessage(proto.NewText(chatFullMessage, DefaultChannel), s.cfg.WriteTimeout)
		conn.Close()
		s.logActivity(fmt.Sprintf("Connection refused, chat is full: %s", c.RemoteAddr()))
		return
	}

	s.registry.Add(c)
	if err := s.reactor.Register(c.stream, func(reactor.Source) { s.read(c) }); err != nil {
		s.registry.Remove(c.id)
		conn.Close()
		s.log.logError(c.id, err)
		return
	}
	s.logActivity(fmt.Sprintf("Connection accepted: %s from %s", c.id, c.RemoteAddr()))
}

func (s *Server) read(c *Connection) {
	msg, err := c.receive(s.cfg.ReadTimeout)
	if err != nil {
		var perr *proto.ProtocolError
		if errors.As(err, &perr) && perr.FrameConsumed() {
			s.log.logError(c.id, err)
			return
		}
		if err != io.EOF {
			s.log.logError(c.id, err)
		}
		s.disconnect(c)
		return
	}

	if err := s.dispatch(c, msg); err != nil {
		s.log.logError(c.id, err)
	}
}

func (s *Server) dispatch(c *Connection, msg proto.Message) error {
	switch m := msg.(type) {
	case proto.Register:
		if err := c.Register(m.User); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		s.logActivity(fmt.Sprintf("User registered: %s as %s", c.id, c.name))

	case proto.Join:
		if err := c.Join(m.Channel); err != nil {
			return fmt.Errorf("join %q: %w", m.Channel, err)
		}
		s.logActivity(fmt.Sprintf("%s joined channel %s", c.DisplayName(), m.Channel))

	case proto.Text:
		if m.Message == "" {
			return fmt.Errorf("message: %w", ErrEmptyMessage)
		}
		d := s.router.Route(c, m.Channel, m.Message)
		s.logActivity(fmt.Sprintf("Message from %s to channel %q: %d recipient(s), %d failure(s)",
			c.DisplayName(), m.Channel, len(d.Recipients), d.Failures))

	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, msg)
	}
	return nil
}

// disconnect releases c. Calling it for a connection that is already gone is a no-op.
func (s *Server) disconnect(c *Connection) {
	if !s.registry.Remove(c.id) {
		return
	}
	s.reactor.Unregister(c.stream)
	c.conn.Close()
	s.logActivity(fmt.Sprintf("User left: %s (%s)", c.DisplayName(), c.id))
}
