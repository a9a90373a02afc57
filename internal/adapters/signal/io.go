package signal

import (
	"context"
	"time"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (h *Hub) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
				time.Now().Add(h.opts.WriteWait),
			)
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping")
				return
			}
		}
	}
}

// readPump is the only place a connection is torn down, so teardown runs
// exactly once whether the peer closed, errored or the server shut down.
func (h *Hub) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn, handler frameHandler) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		handler.teardown(sid)
		h.untrack(sid)
		cancel()
		c.Close()
	}()

	pongWait := h.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(h.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := newConnLimiter(h.opts)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			if !limiter.Allow() {
				switch h.policy.OnRateLimited(sid) {
				case app.KickSession:
					log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited, closing")
					return
				case app.DropMessage:
					h.sendJSON(c, protocol.NewError("rate limited"))
					continue
				case app.NoAction:
				}
			}
			handler.handle(ctx, sid, c, data)
		}
	}
}

func (h *Hub) sendJSON(c core.SignalConnection, m protocol.Outbound) {
	b, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("kind", string(m.Kind())).Msg("sendJSON")
	}
}

func (h *Hub) replyInvalid(c core.SignalConnection, sid core.SessionID, data []byte, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("invalid message")
	h.sendJSON(c, protocol.InvalidMessage(data))
}
