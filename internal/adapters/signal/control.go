package signal

import "github.com/dkeye/Callbox/internal/protocol"

func (h *Hub) handlePing(conn *WsSignalConn) {
	h.sendJSON(conn, protocol.NewPong())
}
