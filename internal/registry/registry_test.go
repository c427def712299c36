package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/go-routeros/routeros/v3"
	"github.com/rs/zerolog"

	"hotspotctl/internal/device"
	"hotspotctl/internal/model"
)

type closeCountConn struct {
	mu     sync.Mutex
	closed int
}

func (c *closeCountConn) Run(context.Context, ...string) (*routeros.Reply, error) {
	return &routeros.Reply{}, nil
}

func (c *closeCountConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *closeCountConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func connectedSession(t *testing.T) (*device.Session, *closeCountConn) {
	t.Helper()
	conn := &closeCountConn{}
	s := device.New(model.Endpoint{Host: "192.0.2.1", Port: 8728},
		device.WithLogger(zerolog.Nop()),
		device.WithDialer(func(context.Context, model.Endpoint) (device.Conn, error) {
			return conn, nil
		}),
	)
	if !s.Connect(context.Background()) {
		t.Fatalf("Connect failed")
	}
	return s, conn
}

func TestRegistry_GetMissing(t *testing.T) {
	t.Parallel()

	r := New()
	if got := r.Get(1); got != nil {
		t.Fatalf("got=%v", got)
	}
}

func TestRegistry_PutReplacesAndDisconnects(t *testing.T) {
	t.Parallel()

	r := New()
	s1, c1 := connectedSession(t)
	s2, _ := connectedSession(t)

	r.Put(7, s1)
	r.Put(7, s2)

	if got := r.Get(7); got != s2 {
		t.Fatalf("get returned wrong session")
	}
	if s1.Connected() {
		t.Fatalf("displaced session still connected")
	}
	if c1.closeCount() != 1 {
		t.Fatalf("displaced transport closed %d times", c1.closeCount())
	}
	if !s2.Connected() {
		t.Fatalf("new session disconnected")
	}
}

func TestRegistry_PutSameSessionTwice(t *testing.T) {
	t.Parallel()

	r := New()
	s, c := connectedSession(t)
	r.Put(7, s)
	r.Put(7, s)

	if !s.Connected() {
		t.Fatalf("session disconnected by re-put")
	}
	if c.closeCount() != 0 {
		t.Fatalf("transport closed %d times", c.closeCount())
	}
}

func TestRegistry_RemoveDisconnects(t *testing.T) {
	t.Parallel()

	r := New()
	s, _ := connectedSession(t)
	r.Put(7, s)
	r.Remove(7)

	if r.Get(7) != nil {
		t.Fatalf("entry survived remove")
	}
	if s.Connected() {
		t.Fatalf("session still connected after remove")
	}

	// Removing again is a no-op.
	r.Remove(7)
}

func TestRegistry_PerUserIsolation(t *testing.T) {
	t.Parallel()

	r := New()
	s1, _ := connectedSession(t)
	s2, _ := connectedSession(t)
	r.Put(1, s1)
	r.Put(2, s2)

	r.Remove(1)
	if !s2.Connected() {
		t.Fatalf("unrelated session disconnected")
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d", r.Len())
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	t.Parallel()

	r := New()
	s1, _ := connectedSession(t)
	s2, _ := connectedSession(t)
	r.Put(1, s1)
	r.Put(2, s2)

	r.Shutdown()
	if r.Len() != 0 {
		t.Fatalf("len=%d", r.Len())
	}
	if s1.Connected() || s2.Connected() {
		t.Fatalf("sessions survived shutdown")
	}
}
