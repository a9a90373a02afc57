package rtc

import (
	"context"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
)

func newClientOffer(t *testing.T) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := client.AddTransceiverFromKind(kind); err != nil {
			t.Fatalf("AddTransceiverFromKind %s: %v", kind, err)
		}
	}
	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := client.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
	return client, offer
}

func TestMirrorPipeline_AnswersOffer(t *testing.T) {
	f, err := NewMirrorFactory(MirrorOptions{})
	if err != nil {
		t.Fatalf("NewMirrorFactory: %v", err)
	}
	p, err := f.NewPipeline(context.Background(), "t1")
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	p.OnICECandidate(func(webrtc.ICECandidateInit) {})

	client, offer := newClientOffer(t)
	answer, err := p.ProcessOffer(offer.SDP)
	if err != nil {
		t.Fatalf("ProcessOffer: %v", err)
	}
	for _, want := range []string{"m=video", "m=audio", "a=sendrecv"} {
		if !strings.Contains(answer, want) {
			t.Fatalf("answer missing %q:\n%s", want, answer)
		}
	}
	if err := client.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		t.Fatalf("client SetRemoteDescription: %v", err)
	}
}

func TestMirrorPipeline_RejectsGarbageOffer(t *testing.T) {
	f, err := NewMirrorFactory(MirrorOptions{})
	if err != nil {
		t.Fatalf("NewMirrorFactory: %v", err)
	}
	p, err := f.NewPipeline(context.Background(), "t2")
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	if _, err := p.ProcessOffer("not an sdp"); err == nil {
		t.Fatalf("expected error for garbage offer")
	}
	// Close is idempotent.
	p.Close()
}

func TestLoggerFactory(t *testing.T) {
	l := NewLoggerFactory().NewLogger("ice")
	l.Debugf("candidate %d", 1)
	l.Warn("warn")
}
