package signal

import (
	"context"
	"fmt"

	"github.com/dkeye/Callbox/internal/app/orch"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SignalWSController serves the one-to-one calling endpoint.
type SignalWSController struct {
	Hub  *Hub
	Orch *orch.Orchestrator
}

func NewSignalWSController(hub *Hub, o *orch.Orchestrator) *SignalWSController {
	return &SignalWSController{Hub: hub, Orch: o}
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ctl.Hub.serve(ctx, c, "signal.one2one", ctl)
}

func (ctl *SignalWSController) open(sid core.SessionID, conn *WsSignalConn) {
	ctl.Orch.Connect(sid, conn)
}

func (ctl *SignalWSController) teardown(sid core.SessionID) {
	ctl.Orch.Disconnect(sid)
}

func (ctl *SignalWSController) handle(_ context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		ctl.Hub.replyInvalid(conn, sid, data, err)
		return
	}

	switch m := msg.(type) {
	case protocol.Register:
		err = ctl.Orch.Register(sid, m.Name)
	case protocol.Call:
		err = ctl.Orch.Call(sid, m.To, m.From, m.SDPOffer)
	case protocol.IncomingCallResponse:
		err = ctl.Orch.IncomingCallResponse(sid, m.From, m.CallResponse, m.SDPAnswer)
	case protocol.Stop:
		ctl.Orch.Stop(sid)
	case protocol.OnIceCandidate:
		err = ctl.Orch.OnIceCandidate(sid, *m.Candidate)
	case protocol.Ping:
		ctl.Hub.handlePing(conn)
	default:
		ctl.Hub.replyInvalid(conn, sid, data, fmt.Errorf("%s not served here", msg.Kind()))
		return
	}
	if err != nil {
		// the orchestrator already answered the client
		log.Debug().Err(err).Str("module", "signal.one2one").Str("sid", string(sid)).Str("kind", string(msg.Kind())).Msg("handle")
	}
}
