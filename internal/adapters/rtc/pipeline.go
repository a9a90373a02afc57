package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// MirrorPipeline is a PeerConnection that sends every received track back
// to the same client.
type MirrorPipeline struct {
	pc     *webrtc.PeerConnection
	sid    core.SessionID
	ctx    context.Context
	cancel context.CancelFunc
	out    map[webrtc.RTPCodecType]*webrtc.TrackLocalStaticRTP

	mu        sync.RWMutex
	onICE     func(webrtc.ICECandidateInit)
	closeOnce sync.Once
}

var echoCodecs = []struct {
	kind webrtc.RTPCodecType
	mime string
}{
	{webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8},
	{webrtc.RTPCodecTypeAudio, webrtc.MimeTypeOpus},
}

func newMirrorPipeline(ctx context.Context, api *webrtc.API, cfg webrtc.Configuration, sid core.SessionID) (*MirrorPipeline, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &MirrorPipeline{
		pc:     pc,
		sid:    sid,
		ctx:    ctx,
		cancel: cancel,
		out:    make(map[webrtc.RTPCodecType]*webrtc.TrackLocalStaticRTP, len(echoCodecs)),
	}

	// Outbound tracks must exist before the offer is applied so pion
	// reuses their transceivers for the answer.
	for _, c := range echoCodecs {
		track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: c.mime}, c.kind.String(), "mirror-"+string(sid))
		if err != nil {
			p.Close()
			return nil, err
		}
		sender, err := pc.AddTrack(track)
		if err != nil {
			p.Close()
			return nil, err
		}
		go drainRTCP(sender)
		p.out[c.kind] = track
	}

	p.bind()
	return p, nil
}

func (p *MirrorPipeline) bind() {
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", string(p.sid)).Str("ice_state", s.String()).Msg("ICE state")
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", string(p.sid)).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			p.cancel()
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		p.mu.RLock()
		fn := p.onICE
		p.mu.RUnlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("sid", string(p.sid)).
			Str("kind", track.Kind().String()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		out, ok := p.out[track.Kind()]
		if !ok {
			return
		}
		go p.echo(track, out)
	})
}

func (p *MirrorPipeline) ProcessOffer(sdpOffer string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdpOffer}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (p *MirrorPipeline) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *MirrorPipeline) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onICE = fn
	p.mu.Unlock()
}

func (p *MirrorPipeline) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		if err := p.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("sid", string(p.sid)).Msg("close error")
			return
		}
		log.Info().Str("module", "rtc").Str("sid", string(p.sid)).Msg("closed")
	})
}

// drainRTCP reads incoming RTCP so interceptors (NACK, PLI) keep working.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
