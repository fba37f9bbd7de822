package internal

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"cdchat/internal/proto"
)

const testTimeout = 2 * time.Second

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConn records every write and never yields data to readers.
type fakeConn struct {
	mu        sync.Mutex
	name      string
	written   bytes.Buffer
	failWrite bool
	closed    int
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{name: name}
}

func (c *fakeConn) Read([]byte) (int, error) { return 0, io.EOF }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite || c.closed > 0 {
		return 0, io.ErrClosedPipe
	}
	return c.written.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr              { return fakeAddr("server") }
func (c *fakeConn) RemoteAddr() net.Addr             { return fakeAddr(c.name) }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setFailWrite(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrite = fail
}

// frames decodes every frame written so far.
func (c *fakeConn) frames(t *testing.T) []proto.Message {
	t.Helper()
	c.mu.Lock()
	data := append([]byte(nil), c.written.Bytes()...)
	c.mu.Unlock()

	var out []proto.Message
	r := bytes.NewReader(data)
	for {
		msg, err := proto.Decode(r)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Decode of written frames failed: %v", err)
		}
		out = append(out, msg)
	}
}

// texts decodes every frame written so far, all of which must be Text.
func (c *fakeConn) texts(t *testing.T) []proto.Text {
	t.Helper()
	var out []proto.Text
	for _, msg := range c.frames(t) {
		text, ok := msg.(proto.Text)
		if !ok {
			t.Fatalf("Expected Text frame, got %#v", msg)
		}
		out = append(out, text)
	}
	return out
}

// syncBuffer is a bytes.Buffer safe for one writer goroutine and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func messages(texts []proto.Text) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = t.Message
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newTestServer returns a server that logs nowhere and is not listening.
func newTestServer(cfg ServerConfig) *Server {
	return newServer(cfg.Sanitize(), io.Discard)
}

// runTestServer listens on a loopback port and serves until the test ends.
func runTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	s := newTestServer(cfg)
	if err := s.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()
	t.Cleanup(func() {
		s.Close()
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Error("Server did not stop")
		}
	})
	return s
}

// waitFor polls the server's registry until cond holds.
func waitFor(t *testing.T, s *Server, cond func([]ConnInfo) bool) []ConnInfo {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		infos, err := s.Snapshot(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if cond(infos) {
			return infos
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met, registry is %+v", infos)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
