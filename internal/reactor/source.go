package reactor

import (
	"bufio"
	"io"
	"net"
	"sync"
)

// Stream is a buffered byte stream usable as a Source. Handlers read from it
// directly; the reactor only peeks to learn that data, EOF or an error is pending.
type Stream struct {
	*bufio.Reader
}

// NewStream wraps r.
func NewStream(r io.Reader) *Stream {
	return &Stream{bufio.NewReader(r)}
}

// WaitReadable blocks until at least one byte is buffered or the underlying
// reader fails.
func (s *Stream) WaitReadable() error {
	_, err := s.Peek(1)
	return err
}

// Acceptor turns a net.Listener into a Source: it becomes ready once a
// connection has been accepted, and the handler collects it with Accept.
type Acceptor struct {
	ln net.Listener

	mu     sync.Mutex
	conn   net.Conn
	err    error
	closed bool
}

// NewAcceptor wraps ln.
func NewAcceptor(ln net.Listener) *Acceptor {
	return &Acceptor{ln: ln}
}

// WaitReadable blocks in Accept on the underlying listener. A connection
// accepted after Close is closed right away.
func (a *Acceptor) WaitReadable() error {
	conn, err := a.ln.Accept()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		if conn != nil {
			conn.Close()
		}
		a.conn, a.err = nil, net.ErrClosed
		return a.err
	}
	a.conn, a.err = conn, err
	return err
}

// Accept returns the connection, or the error, produced by the last wait.
// Each accepted connection is handed out once.
func (a *Acceptor) Accept() (net.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := a.conn, a.err
	a.conn, a.err = nil, nil
	if conn == nil && err == nil {
		return nil, io.ErrNoProgress
	}
	return conn, err
}

// Close closes the listener, which also ends a pending wait, and any
// connection that was accepted but not yet collected.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	a.closed = true
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	return a.ln.Close()
}

// Addr returns the listener's network address.
func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}
