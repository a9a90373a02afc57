package app

import (
	"fmt"

	"github.com/dkeye/Callbox/internal/core"
)

type Action int

const (
	NoAction Action = iota
	DropMessage
	KickSession
)

func ParseAction(s string) (Action, error) {
	switch s {
	case "", "none":
		return NoAction, nil
	case "drop":
		return DropMessage, nil
	case "close", "kick":
		return KickSession, nil
	}
	return NoAction, fmt.Errorf("unknown policy action %q", s)
}

// Policy decides what happens to misbehaving sessions.
type Policy interface {
	// OnBackPressure is consulted when a session's outbound queue is full.
	OnBackPressure(sid core.SessionID) Action
	// OnRateLimited is consulted when a session sends faster than allowed.
	OnRateLimited(sid core.SessionID) Action
}

type SimplePolicy struct {
	RateLimited Action
}

func (SimplePolicy) OnBackPressure(core.SessionID) Action {
	return KickSession
}

func (p SimplePolicy) OnRateLimited(core.SessionID) Action {
	return p.RateLimited
}
