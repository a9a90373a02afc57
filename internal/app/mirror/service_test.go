package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

type recordConn struct {
	mu     sync.Mutex
	frames []map[string]any
}

func (c *recordConn) TrySend(f core.Frame) error {
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, m)
	c.mu.Unlock()
	return nil
}

func (c *recordConn) Close() {}

func (c *recordConn) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, m := range c.frames {
		out = append(out, m["id"].(string))
	}
	return out
}

type fakePipeline struct {
	mu         sync.Mutex
	offer      string
	applied    []string
	onICE      func(webrtc.ICECandidateInit)
	closed     bool
	processErr error
}

func (p *fakePipeline) ProcessOffer(sdp string) (string, error) {
	if p.processErr != nil {
		return "", p.processErr
	}
	p.offer = sdp
	if p.onICE != nil {
		p.onICE(webrtc.ICECandidateInit{Candidate: "local1"})
	}
	return "answer-for-" + sdp, nil
}

func (p *fakePipeline) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, c.Candidate)
	return nil
}

func (p *fakePipeline) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }

func (p *fakePipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

type fakeFactory struct {
	made []*fakePipeline
	next *fakePipeline
	err  error
}

func (f *fakeFactory) NewPipeline(context.Context, core.SessionID) (core.MediaPipeline, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := f.next
	if p == nil {
		p = &fakePipeline{}
	}
	f.next = nil
	f.made = append(f.made, p)
	return p, nil
}

func TestStart_FlushesQueuedCandidatesInOrder(t *testing.T) {
	f := &fakeFactory{}
	svc := NewService(f, app.NewCandidateBuffer(0))
	conn := &recordConn{}

	for _, c := range []string{"r1", "r2", "r3"} {
		if err := svc.OnIceCandidate("1", conn, webrtc.ICECandidateInit{Candidate: c}); err != nil {
			t.Fatalf("OnIceCandidate: %v", err)
		}
	}
	if err := svc.Start(context.Background(), "1", conn, "O"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.OnIceCandidate("1", conn, webrtc.ICECandidateInit{Candidate: "r4"}); err != nil {
		t.Fatalf("OnIceCandidate: %v", err)
	}

	p := f.made[0]
	want := []string{"r1", "r2", "r3", "r4"}
	if len(p.applied) != len(want) {
		t.Fatalf("applied: got %v, want %v", p.applied, want)
	}
	for i := range want {
		if p.applied[i] != want[i] {
			t.Fatalf("applied[%d]: got %q, want %q", i, p.applied[i], want[i])
		}
	}

	ids := conn.ids()
	if len(ids) != 2 || ids[0] != "iceCandidate" || ids[1] != "startResponse" {
		t.Fatalf("frames: got %v", ids)
	}
	if conn.frames[1]["sdpAnswer"] != "answer-for-O" {
		t.Fatalf("startResponse: %v", conn.frames[1])
	}
}

func TestStart_Twice(t *testing.T) {
	svc := NewService(&fakeFactory{}, app.NewCandidateBuffer(0))
	conn := &recordConn{}
	if err := svc.Start(context.Background(), "1", conn, "O"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Start(context.Background(), "1", conn, "O"); !errors.Is(err, app.ErrInvalidState) {
		t.Fatalf("got %v, want %v", err, app.ErrInvalidState)
	}
}

func TestStart_ProcessOfferFailure(t *testing.T) {
	f := &fakeFactory{next: &fakePipeline{processErr: errors.New("bad sdp")}}
	svc := NewService(f, app.NewCandidateBuffer(0))
	conn := &recordConn{}
	if err := svc.Start(context.Background(), "1", conn, "garbage"); err == nil {
		t.Fatalf("expected error")
	}
	if !f.made[0].closed {
		t.Fatalf("failed pipeline not closed")
	}
	if svc.Len() != 0 {
		t.Fatalf("failed pipeline kept")
	}
	if ids := conn.ids(); len(ids) != 1 || ids[0] != "error" {
		t.Fatalf("frames: %v", ids)
	}
}

func TestStop_ReleasesAndForgets(t *testing.T) {
	f := &fakeFactory{}
	svc := NewService(f, app.NewCandidateBuffer(0))
	conn := &recordConn{}

	_ = svc.OnIceCandidate("2", conn, webrtc.ICECandidateInit{Candidate: "early"})
	svc.Stop("2")
	if n := svc.Candidates.Len("2"); n != 0 {
		t.Fatalf("queued candidates survived Stop: %d", n)
	}

	_ = svc.Start(context.Background(), "1", conn, "O")
	svc.Stop("1")
	svc.Stop("1")
	if !f.made[0].closed {
		t.Fatalf("pipeline not closed")
	}
	if svc.Len() != 0 {
		t.Fatalf("Len: got %d", svc.Len())
	}
}
