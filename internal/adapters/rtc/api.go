package rtc

import (
	"context"
	"time"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const DefaultPLIInterval = 3 * time.Second

type MirrorOptions struct {
	ICEServers  []webrtc.ICEServer
	PLIInterval time.Duration
}

// MirrorFactory builds loopback pipelines sharing one pion API.
type MirrorFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewMirrorFactory(opts MirrorOptions) (*MirrorFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}

	// Keep keyframes coming so the echoed video recovers quickly.
	pliInterval := opts.PLIInterval
	if pliInterval <= 0 {
		pliInterval = DefaultPLIInterval
	}
	pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(pliInterval))
	if err != nil {
		return nil, err
	}
	i.Add(pli)

	s := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory()}

	cfg := DefaultWebRTCConfig()
	if len(opts.ICEServers) > 0 {
		cfg.ICEServers = opts.ICEServers
	}

	log.Info().Str("module", "rtc").Dur("pli_interval", pliInterval).Int("ice_servers", len(cfg.ICEServers)).Msg("mirror factory ready")
	return &MirrorFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		config: cfg,
	}, nil
}

func (f *MirrorFactory) NewPipeline(ctx context.Context, sid core.SessionID) (core.MediaPipeline, error) {
	return newMirrorPipeline(ctx, f.api, f.config, sid)
}
