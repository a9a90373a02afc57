// Package mirror runs the loopback variant: each client gets a server side
// pipeline that echoes its own media back.
package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Service struct {
	Factory    core.MediaPipelineFactory
	Candidates *app.CandidateBuffer

	mu        sync.Mutex
	pipelines map[core.SessionID]core.MediaPipeline
}

func NewService(factory core.MediaPipelineFactory, cands *app.CandidateBuffer) *Service {
	return &Service{
		Factory:    factory,
		Candidates: cands,
		pipelines:  make(map[core.SessionID]core.MediaPipeline),
	}
}

// Start builds a pipeline for sid, answers the offer and flushes candidates
// that arrived before the pipeline existed. Replies go to conn.
func (s *Service) Start(ctx context.Context, sid core.SessionID, conn core.SignalConnection, sdpOffer string) error {
	s.mu.Lock()
	_, running := s.pipelines[sid]
	s.mu.Unlock()
	if running {
		send(conn, protocol.NewError("pipeline already started"))
		return app.ErrInvalidState
	}

	p, err := s.Factory.NewPipeline(ctx, sid)
	if err != nil {
		log.Error().Err(err).Str("module", "mirror").Str("sid", string(sid)).Msg("new pipeline")
		send(conn, protocol.NewError(err.Error()))
		return err
	}
	p.OnICECandidate(func(c webrtc.ICECandidateInit) {
		send(conn, protocol.NewIceCandidate(c))
	})

	answer, err := p.ProcessOffer(sdpOffer)
	if err != nil {
		p.Close()
		log.Error().Err(err).Str("module", "mirror").Str("sid", string(sid)).Msg("process offer")
		send(conn, protocol.NewError(err.Error()))
		return fmt.Errorf("process offer: %w", err)
	}

	s.mu.Lock()
	s.pipelines[sid] = p
	n := s.Candidates.Drain(sid, func(c webrtc.ICECandidateInit) {
		if err := p.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "mirror").Str("sid", string(sid)).Msg("queued candidate")
		}
	})
	s.mu.Unlock()

	log.Info().Str("module", "mirror").Str("sid", string(sid)).Int("flushed", n).Msg("pipeline started")
	send(conn, protocol.NewStartResponse(answer))
	return nil
}

// OnIceCandidate applies c to the running pipeline or queues it until Start.
func (s *Service) OnIceCandidate(sid core.SessionID, conn core.SignalConnection, c webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pipelines[sid]; ok {
		return p.AddICECandidate(c)
	}
	if err := s.Candidates.Enqueue(sid, c); err != nil {
		log.Warn().Err(err).Str("module", "mirror").Str("sid", string(sid)).Msg("candidate dropped")
		send(conn, protocol.NewError("candidate dropped: "+err.Error()))
		return err
	}
	return nil
}

// Stop releases the pipeline and forgets queued candidates. Idempotent.
func (s *Service) Stop(sid core.SessionID) {
	s.mu.Lock()
	p, ok := s.pipelines[sid]
	delete(s.pipelines, sid)
	s.Candidates.Clear(sid)
	s.mu.Unlock()
	if ok {
		p.Close()
		log.Info().Str("module", "mirror").Str("sid", string(sid)).Msg("pipeline released")
	}
}

func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pipelines)
}

func send(conn core.SignalConnection, m protocol.Outbound) {
	frame, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "mirror").Msg("encode")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "mirror").Str("kind", string(m.Kind())).Msg("send failed")
	}
}
