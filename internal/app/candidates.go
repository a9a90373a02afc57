package app

import (
	"sync"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/pion/webrtc/v4"
)

// CandidateBuffer holds trickled candidates for sessions whose peer is not known yet.
type CandidateBuffer struct {
	mu    sync.Mutex
	queue map[core.SessionID][]webrtc.ICECandidateInit
	limit int
}

// NewCandidateBuffer returns a buffer holding at most limit candidates per
// session. A limit <= 0 means unbounded.
func NewCandidateBuffer(limit int) *CandidateBuffer {
	return &CandidateBuffer{
		queue: make(map[core.SessionID][]webrtc.ICECandidateInit),
		limit: limit,
	}
}

func (b *CandidateBuffer) Enqueue(sid core.SessionID, c webrtc.ICECandidateInit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queue[sid]
	if b.limit > 0 && len(q) >= b.limit {
		return ErrBufferOverflow
	}
	b.queue[sid] = append(q, c)
	return nil
}

// Drain removes the queue for sid and hands every candidate to deliver in
// arrival order. Returns how many were delivered.
func (b *CandidateBuffer) Drain(sid core.SessionID, deliver func(webrtc.ICECandidateInit)) int {
	b.mu.Lock()
	q := b.queue[sid]
	delete(b.queue, sid)
	b.mu.Unlock()

	for _, c := range q {
		deliver(c)
	}
	return len(q)
}

func (b *CandidateBuffer) Clear(sid core.SessionID) {
	b.mu.Lock()
	delete(b.queue, sid)
	b.mu.Unlock()
}

func (b *CandidateBuffer) Len(sid core.SessionID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue[sid])
}
