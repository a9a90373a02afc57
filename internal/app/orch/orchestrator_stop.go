package orch

import (
	"time"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Stop hangs up whatever call the session is part of. No-op when idle.
func (o *Orchestrator) Stop(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.session(sid); ok {
		o.stopLocked(s)
	}
}

func (o *Orchestrator) stopLocked(s *core.Session) {
	if s.PeerName == "" {
		return
	}
	peerName := s.PeerName
	o.disarmRing(s.ID)
	s.ResetCall()
	o.Candidates.Clear(s.ID)

	peer, ok := o.Registry.GetByName(peerName)
	if !ok || peer.PeerName != s.Name {
		return
	}
	o.disarmRing(peer.ID)
	peer.ResetCall()
	o.Candidates.Clear(peer.ID)
	_ = o.send(peer, protocol.NewStopCommunication(domain.ReasonHangUp))
	log.Info().Str("module", "orch").Str("sid", string(s.ID)).Str("peer", peerName).Msg("call stopped")
}

func (o *Orchestrator) armRing(callerID core.SessionID, callID uint64) {
	if o.ringTimeout <= 0 {
		return
	}
	o.disarmRing(callerID)
	o.rings[callerID] = time.AfterFunc(o.ringTimeout, func() {
		o.ringExpired(callerID, callID)
	})
}

func (o *Orchestrator) disarmRing(callerID core.SessionID) {
	if t, ok := o.rings[callerID]; ok {
		t.Stop()
		delete(o.rings, callerID)
	}
}

func (o *Orchestrator) ringExpired(callerID core.SessionID, callID uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	caller, ok := o.session(callerID)
	if !ok || caller.CallID != callID || caller.State != domain.StateCalling {
		return
	}
	delete(o.rings, callerID)

	calleeName := caller.PeerName
	caller.ResetCall()
	o.Candidates.Clear(caller.ID)
	_ = o.send(caller, protocol.CallRejected("User "+calleeName+" did not answer"))

	if callee, ok := o.Registry.GetByName(calleeName); ok && callee.CallID == callID {
		callee.ResetCall()
		o.Candidates.Clear(callee.ID)
		_ = o.send(callee, protocol.NewStopCommunication(domain.ReasonTimeout))
	}
	log.Info().Str("module", "orch").Str("sid", string(callerID)).Str("to", calleeName).Uint64("call", callID).Msg("ring timeout")
}
