package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaPipeline is a server side media endpoint that answers a client offer.
type MediaPipeline interface {
	// ProcessOffer applies the remote offer and returns the local answer SDP.
	ProcessOffer(sdpOffer string) (string, error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	// Must be set before ProcessOffer.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// Close should stop all underlying media resources.
	Close()
}

type MediaPipelineFactory interface {
	NewPipeline(ctx context.Context, sid SessionID) (MediaPipeline, error)
}
