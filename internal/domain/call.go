package domain

type CallState int

const (
	StateUnregistered CallState = iota
	StateRegistered
	StateCalling
	StateRinging
	StateInCall
	StateClosed
)

func (s CallState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateCalling:
		return "calling"
	case StateRinging:
		return "ringing"
	case StateInCall:
		return "in_call"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// CallResponse is the callee's answer to an incoming call.
type CallResponse string

const (
	CallAccept CallResponse = "accept"
	CallReject CallResponse = "reject"
)

// Verdict is what the relay reports back for register and call requests.
type Verdict string

const (
	Accepted Verdict = "accepted"
	Rejected Verdict = "rejected"
)

const (
	ReasonDeclined  = "user declined"
	ReasonHangUp    = "remote user hanged out"
	ReasonTimeout   = "call timed out"
	ReasonUnreached = "remote user unreachable"
)
