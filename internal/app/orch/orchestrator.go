// Package orch holds the call-signaling state machine. Every exported method
// is serialized by a single lock; replies are pushed asynchronously through
// the participants' SignalConnection.
package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	DefaultRingTimeout       = 60 * time.Second
	DefaultCredentialTimeout = 5 * time.Second
)

type Orchestrator struct {
	Registry   *app.Registry
	Candidates *app.CandidateBuffer
	Creds      core.CredentialProvider
	Policy     app.Policy

	ringTimeout time.Duration
	credTimeout time.Duration

	mu       sync.Mutex
	sessions map[core.SessionID]*core.Session
	rings    map[core.SessionID]*time.Timer
	callSeq  uint64

	ctx     context.Context
	cancel  context.CancelFunc
	workers conc.WaitGroup
}

type Option func(*Orchestrator)

// WithRingTimeout bounds how long a call may ring. Zero disables the timer.
func WithRingTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.ringTimeout = d }
}

func WithCredentialTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.credTimeout = d
		}
	}
}

func WithPolicy(p app.Policy) Option {
	return func(o *Orchestrator) { o.Policy = p }
}

func New(reg *app.Registry, cands *app.CandidateBuffer, creds core.CredentialProvider, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		Registry:    reg,
		Candidates:  cands,
		Creds:       creds,
		Policy:      app.SimplePolicy{},
		ringTimeout: DefaultRingTimeout,
		credTimeout: DefaultCredentialTimeout,
		sessions:    make(map[core.SessionID]*core.Session),
		rings:       make(map[core.SessionID]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Connect creates an unregistered session bound to conn.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sid] = core.NewSession(sid, conn)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("connected")
}

// Disconnect is an implicit stop followed by unregister. Safe to call twice.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[sid]
	if !ok {
		return
	}
	o.stopLocked(s)
	o.Registry.Unregister(sid)
	o.Candidates.Clear(sid)
	s.State = domain.StateClosed
	delete(o.sessions, sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

// Users returns a snapshot of registered participants.
func (o *Orchestrator) Users() []domain.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	sessions := o.Registry.Sessions()
	out := make([]domain.User, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// State reports the call state of a connected session.
func (o *Orchestrator) State(sid core.SessionID) (domain.CallState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[sid]
	if !ok {
		return domain.StateClosed, false
	}
	return s.State, true
}

// Close stops ring timers and waits for in-flight credential requests.
func (o *Orchestrator) Close() {
	o.cancel()
	o.mu.Lock()
	for id, t := range o.rings {
		t.Stop()
		delete(o.rings, id)
	}
	o.mu.Unlock()
	o.workers.Wait()
}

// send encodes m and pushes it to s without blocking.
func (o *Orchestrator) send(s *core.Session, m protocol.Outbound) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode")
		return err
	}
	conn := s.Signal()
	if conn == nil {
		return fmt.Errorf("%w: no transport", app.ErrDelivery)
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(s.ID)).Str("kind", string(m.Kind())).Msg("send failed")
		if errors.Is(err, core.ErrBackpressure) && o.Policy != nil {
			switch o.Policy.OnBackPressure(s.ID) {
			case app.KickSession:
				conn.Close()
			case app.DropMessage, app.NoAction:
			}
		}
		return fmt.Errorf("%w: %v", app.ErrDelivery, err)
	}
	return nil
}

func (o *Orchestrator) session(sid core.SessionID) (*core.Session, bool) {
	s, ok := o.sessions[sid]
	return s, ok
}
