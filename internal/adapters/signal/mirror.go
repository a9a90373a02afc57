package signal

import (
	"context"
	"fmt"

	"github.com/dkeye/Callbox/internal/app/mirror"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MirrorWSController serves the loopback endpoint: whatever the browser
// sends is played back to it by a server-side pipeline.
type MirrorWSController struct {
	Hub    *Hub
	Mirror *mirror.Service
}

func NewMirrorWSController(hub *Hub, svc *mirror.Service) *MirrorWSController {
	return &MirrorWSController{Hub: hub, Mirror: svc}
}

func (ctl *MirrorWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ctl.Hub.serve(ctx, c, "signal.mirror", ctl)
}

func (ctl *MirrorWSController) open(core.SessionID, *WsSignalConn) {}

func (ctl *MirrorWSController) teardown(sid core.SessionID) {
	ctl.Mirror.Stop(sid)
}

func (ctl *MirrorWSController) handle(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		ctl.Hub.replyInvalid(conn, sid, data, err)
		return
	}

	switch m := msg.(type) {
	case protocol.Start:
		err = ctl.Mirror.Start(ctx, sid, conn, m.SDPOffer)
	case protocol.OnIceCandidate:
		err = ctl.Mirror.OnIceCandidate(sid, conn, *m.Candidate)
	case protocol.Stop:
		ctl.Mirror.Stop(sid)
	case protocol.Ping:
		ctl.Hub.handlePing(conn)
	default:
		ctl.Hub.replyInvalid(conn, sid, data, fmt.Errorf("%s not served here", msg.Kind()))
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal.mirror").Str("sid", string(sid)).Str("kind", string(msg.Kind())).Msg("handle")
	}
}
