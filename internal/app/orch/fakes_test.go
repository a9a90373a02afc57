package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

type fakeConn struct {
	frames chan core.Frame

	mu     sync.Mutex
	fail   error
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan core.Frame, 128)}
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.fail != nil {
		return c.fail
	}
	c.frames <- f
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type msg map[string]any

func (c *fakeConn) next(t *testing.T) msg {
	t.Helper()
	select {
	case f := <-c.frames:
		var m msg
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a frame")
	}
	return nil
}

func (c *fakeConn) expect(t *testing.T, id string) msg {
	t.Helper()
	m := c.next(t)
	if m["id"] != id {
		t.Fatalf("frame id: got %v, want %q (frame %v)", m["id"], id, m)
	}
	return m
}

func (c *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("unexpected frame: %s", f)
	case <-time.After(50 * time.Millisecond):
	}
}

type providerFunc func(ctx context.Context, name string) (core.IceConfiguration, error)

func (f providerFunc) Credentials(ctx context.Context, name string) (core.IceConfiguration, error) {
	return f(ctx, name)
}

func staticProvider() core.CredentialProvider {
	return providerFunc(func(_ context.Context, name string) (core.IceConfiguration, error) {
		return core.IceConfiguration{
			ICEServers:         []webrtc.ICEServer{{URLs: []string{"turn:10.0.0.1:3478"}, Username: name, Credential: "secret"}},
			ICETransportPolicy: "relay",
		}, nil
	})
}

func newTestOrch(t *testing.T, creds core.CredentialProvider, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(app.NewRegistry(), app.NewCandidateBuffer(0), creds, opts...)
	t.Cleanup(o.Close)
	return o
}

// join connects a session and registers it, consuming the registerResponse.
func join(t *testing.T, o *Orchestrator, sid core.SessionID, name string) *fakeConn {
	t.Helper()
	c := newFakeConn()
	o.Connect(sid, c)
	if err := o.Register(sid, name); err != nil {
		t.Fatalf("Register %s: %v", name, err)
	}
	m := c.expect(t, "registerResponse")
	if m["response"] != "accepted" {
		t.Fatalf("register %s: %v", name, m)
	}
	return c
}

func candidate(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func candidateOf(t *testing.T, m msg) string {
	t.Helper()
	c, ok := m["candidate"].(map[string]any)
	if !ok {
		t.Fatalf("no candidate in %v", m)
	}
	return c["candidate"].(string)
}
