package orch

import (
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// OnIceCandidate forwards a trickled candidate to the session's peer, flushing
// anything queued before it. Without a resolved peer the candidate is queued.
// Candidates from sessions that never registered are ignored.
func (o *Orchestrator) OnIceCandidate(sid core.SessionID, c webrtc.ICECandidateInit) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.session(sid)
	if !ok || !s.Registered() {
		return nil
	}

	if s.PeerName != "" {
		if peer, ok := o.Registry.GetByName(s.PeerName); ok {
			n := o.Candidates.Drain(sid, func(queued webrtc.ICECandidateInit) {
				_ = o.send(peer, protocol.NewIceCandidate(queued))
			})
			if n > 0 {
				log.Debug().Str("module", "orch").Str("sid", string(sid)).Int("count", n).Msg("flushed candidates")
			}
			return o.send(peer, protocol.NewIceCandidate(c))
		}
	}

	if err := o.Candidates.Enqueue(sid, c); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("candidate dropped")
		_ = o.send(s, protocol.NewError("candidate dropped: "+err.Error()))
		return err
	}
	return nil
}
