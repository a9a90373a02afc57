package orch

import (
	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Call forwards the caller's offer to the participant registered as to.
// The caller is always announced under its registered name.
func (o *Orchestrator) Call(sid core.SessionID, to, from, sdpOffer string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	caller, ok := o.session(sid)
	if !ok {
		return app.ErrUnknownPeer
	}
	if caller.State != domain.StateRegistered {
		reason := "not registered"
		if caller.Registered() {
			reason = "already in a call"
		}
		_ = o.send(caller, protocol.CallRejected(reason))
		return app.ErrInvalidState
	}
	if from != "" && from != caller.Name {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("from", from).Str("name", caller.Name).Msg("call from mismatch")
	}

	o.Candidates.Clear(sid)

	callee, ok := o.Registry.GetByName(to)
	if !ok {
		_ = o.send(caller, protocol.CallRejected("User "+to+" is not registered"))
		return app.ErrUnknownPeer
	}
	if callee.ID == caller.ID {
		_ = o.send(caller, protocol.CallRejected("cannot call yourself"))
		return app.ErrInvalidState
	}
	if callee.State != domain.StateRegistered {
		_ = o.send(caller, protocol.CallRejected("User "+to+" is busy"))
		return app.ErrInvalidState
	}

	o.callSeq++
	id := o.callSeq
	caller.PeerName, callee.PeerName = callee.Name, caller.Name
	caller.PendingOffer = sdpOffer
	caller.State, callee.State = domain.StateCalling, domain.StateRinging
	caller.CallID, callee.CallID = id, id

	if err := o.send(callee, protocol.NewIncomingCall(caller.Name, sdpOffer)); err != nil {
		caller.ResetCall()
		callee.ResetCall()
		_ = o.send(caller, protocol.CallRejected("Error "+err.Error()))
		return err
	}
	o.armRing(caller.ID, id)
	log.Info().Str("module", "orch").Str("from", caller.Name).Str("to", callee.Name).Uint64("call", id).Msg("ringing")
	return nil
}

// IncomingCallResponse delivers the callee's verdict to the matching caller only.
func (o *Orchestrator) IncomingCallResponse(sid core.SessionID, from string, resp domain.CallResponse, sdpAnswer string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	callee, ok := o.session(sid)
	if !ok {
		return app.ErrUnknownPeer
	}
	o.Candidates.Clear(sid)

	var caller *core.Session
	if from != "" {
		caller, ok = o.Registry.GetByName(from)
	}
	if caller == nil || !ok {
		// the callee is told to stop, so whatever it was part of ends here too
		o.stopLocked(callee)
		_ = o.send(callee, protocol.NewStopCommunication("unknown from = "+from))
		return app.ErrUnknownPeer
	}
	if callee.State != domain.StateRinging || caller.State != domain.StateCalling ||
		caller.PeerName != callee.Name || callee.PeerName != caller.Name || caller.CallID != callee.CallID {
		o.stopLocked(callee)
		_ = o.send(callee, protocol.NewStopCommunication("no pending call from "+from))
		return app.ErrInvalidState
	}
	o.disarmRing(caller.ID)

	if resp != domain.CallAccept {
		_ = o.send(caller, protocol.CallRejected(domain.ReasonDeclined))
		o.resetPair(caller, callee)
		log.Info().Str("module", "orch").Str("from", caller.Name).Str("to", callee.Name).Msg("call declined")
		return nil
	}

	if err := o.send(caller, protocol.CallAccepted(sdpAnswer)); err != nil {
		o.resetPair(caller, callee)
		_ = o.send(callee, protocol.NewStopCommunication(domain.ReasonUnreached))
		return err
	}
	caller.PendingOffer = ""
	caller.State, callee.State = domain.StateInCall, domain.StateInCall
	log.Info().Str("module", "orch").Str("from", caller.Name).Str("to", callee.Name).Msg("call established")
	return nil
}

// resetPair returns both parties to idle and discards their buffered candidates.
func (o *Orchestrator) resetPair(a, b *core.Session) {
	a.ResetCall()
	b.ResetCall()
	o.Candidates.Clear(a.ID)
	o.Candidates.Clear(b.ID)
}
