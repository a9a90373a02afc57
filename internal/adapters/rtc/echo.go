package rtc

import (
	"errors"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// echo reads RTP packets from src and writes them to dst until the pipeline
// closes or either side fails.
func (p *MirrorPipeline) echo(src *webrtc.TrackRemote, dst *webrtc.TrackLocalStaticRTP) {
	logger := log.With().
		Str("module", "rtc").
		Str("sid", string(p.sid)).
		Str("kind", src.Kind().String()).
		Logger()
	logger.Info().Msg("echo loop started")

	var packets, bytes int
	defer func() {
		logger.Info().Int("packets", packets).Int("bytes", bytes).Msg("echo loop stopped")
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		pkt, _, err := src.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn().Err(err).Msg("read RTP")
			}
			return
		}
		if err := forward(pkt, dst, &logger); err != nil {
			return
		}
		packets++
		bytes += pkt.MarshalSize()
	}
}

func forward(pkt *rtp.Packet, dst *webrtc.TrackLocalStaticRTP, logger *zerolog.Logger) error {
	if err := dst.WriteRTP(pkt); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return err
		}
		logger.Error().Err(err).Msg("write RTP")
		return err
	}
	return nil
}
