package internal

import (
	"io"
	"testing"
	"time"
)

type testPeer struct {
	conn *fakeConn
	c    *Connection
}

func addPeer(t *testing.T, r *Registry, name string, channels ...string) testPeer {
	t.Helper()
	fc := newFakeConn(name)
	c := newConnection(fc)
	if err := c.Register(name); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	for _, ch := range channels {
		if err := c.Join(ch); err != nil {
			t.Fatalf("Join(%q) failed: %v", ch, err)
		}
	}
	r.Add(c)
	return testPeer{fc, c}
}

func newTestRouter(r *Registry, echoOnce bool) *Router {
	return newRouter(r, newActivityLog(io.Discard), time.Second, echoOnce)
}

func TestRouteNamedChannel(t *testing.T) {
	reg := NewRegistry()
	a := addPeer(t, reg, "A", "x")
	b := addPeer(t, reg, "B", "x")
	c := addPeer(t, reg, "C", "y")

	d := newTestRouter(reg, false).Route(a.c, "x", "hello")

	if len(d.Recipients) != 1 || d.Recipients[0] != b.c.ID() {
		t.Errorf("Expected only B as recipient, got %v", d.Recipients)
	}
	if got := b.conn.texts(t); len(got) != 1 || got[0].Message != "(A): hello" || got[0].Channel != "x" {
		t.Errorf("B expected forwarded form, got %+v", got)
	}
	if got := messages(a.conn.texts(t)); !equalStrings(got, []string{"hello"}) {
		t.Errorf("A expected one echo, got %q", got)
	}
	if got := c.conn.texts(t); len(got) != 0 {
		t.Errorf("C should receive nothing, got %+v", got)
	}
}

func TestRouteDefaultChannel(t *testing.T) {
	reg := NewRegistry()
	a := addPeer(t, reg, "A")
	b := addPeer(t, reg, "B")
	joined := addPeer(t, reg, "J", "x")
	anon := newConnection(newFakeConn("anon"))
	reg.Add(anon)

	d := newTestRouter(reg, false).Route(a.c, DefaultChannel, "hi all")

	if len(d.Recipients) != 2 {
		t.Errorf("Expected B and the anonymous peer, got %v", d.Recipients)
	}
	if got := b.conn.texts(t); len(got) != 1 || got[0].Message != "(A): hi all" || got[0].Channel != "" {
		t.Errorf("B expected forwarded form on default channel, got %+v", got)
	}
	if got := joined.conn.texts(t); len(got) != 0 {
		t.Errorf("Connection that joined a named channel should not receive default traffic, got %+v", got)
	}
	if got := messages(a.conn.texts(t)); !equalStrings(got, []string{"hi all", "hi all"}) {
		t.Errorf("Expected one echo per recipient, got %q", got)
	}
}

func TestRouteAnonymousSender(t *testing.T) {
	reg := NewRegistry()
	sender := newConnection(newFakeConn("s"))
	reg.Add(sender)
	b := addPeer(t, reg, "B")

	newTestRouter(reg, false).Route(sender, DefaultChannel, "who am i")
	if got := messages(b.conn.texts(t)); !equalStrings(got, []string{"(anonymous): who am i"}) {
		t.Errorf("Unexpected forwarded form %q", got)
	}
}

func TestRouteEchoPolicy(t *testing.T) {
	tests := []struct {
		name     string
		echoOnce bool
		echoes   int
	}{
		{"PerRecipient", false, 3},
		{"Once", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			a := addPeer(t, reg, "A", "x")
			for _, name := range []string{"B", "C", "D"} {
				addPeer(t, reg, name, "y", "x")
			}

			d := newTestRouter(reg, tt.echoOnce).Route(a.c, "x", "m")
			if len(d.Recipients) != 3 {
				t.Errorf("Expected 3 recipients, got %d", len(d.Recipients))
			}
			if d.Echoes != tt.echoes {
				t.Errorf("Expected %d echoes, got %d", tt.echoes, d.Echoes)
			}
			if got := len(a.conn.texts(t)); got != tt.echoes {
				t.Errorf("Sender received %d echoes, expected %d", got, tt.echoes)
			}
		})
	}
}

func TestRouteWriteFailureIsolated(t *testing.T) {
	reg := NewRegistry()
	a := addPeer(t, reg, "A", "x")
	broken := addPeer(t, reg, "B", "x")
	c := addPeer(t, reg, "C", "x")
	broken.conn.setFailWrite(true)

	d := newTestRouter(reg, false).Route(a.c, "x", "still here")

	if d.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", d.Failures)
	}
	if got := messages(c.conn.texts(t)); !equalStrings(got, []string{"(A): still here"}) {
		t.Errorf("C should still get the message, got %q", got)
	}
	if got := len(a.conn.texts(t)); got != 2 {
		t.Errorf("Sender expected 2 echoes, got %d", got)
	}
}

func TestRouteNoRecipients(t *testing.T) {
	reg := NewRegistry()
	a := addPeer(t, reg, "A", "x")
	addPeer(t, reg, "B", "y")

	d := newTestRouter(reg, false).Route(a.c, "x", "anyone?")
	if len(d.Recipients) != 0 || d.Echoes != 0 {
		t.Errorf("Expected no delivery, got %+v", d)
	}
	if got := a.conn.texts(t); len(got) != 0 {
		t.Errorf("No echo expected without recipients, got %+v", got)
	}
}
