package core

import "github.com/dkeye/Callbox/internal/domain"

type SessionID string

// Session binds a participant to its transport endpoint.
// Fields are guarded by the owning orchestrator.
type Session struct {
	ID           SessionID
	Name         string
	PeerName     string
	PendingOffer string
	State        domain.CallState
	CallID       uint64

	signal SignalConnection
}

func NewSession(id SessionID, conn SignalConnection) *Session {
	return &Session{ID: id, State: domain.StateUnregistered, signal: conn}
}

func (s *Session) Signal() SignalConnection { return s.signal }

func (s *Session) Registered() bool { return s.Name != "" }

// ResetCall drops any call in progress and returns the session to its idle state.
func (s *Session) ResetCall() {
	s.PeerName = ""
	s.PendingOffer = ""
	s.CallID = 0
	if s.State == domain.StateClosed {
		return
	}
	if s.Registered() {
		s.State = domain.StateRegistered
	} else {
		s.State = domain.StateUnregistered
	}
}

func (s *Session) Snapshot() domain.User {
	return domain.User{Name: s.Name, State: s.State.String(), Peer: s.PeerName}
}
