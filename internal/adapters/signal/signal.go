package signal

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/config"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		RateLimit:      cfg.Signal.RateLimit,
		RateBurst:      cfg.Signal.RateBurst,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// frameHandler is what a WebSocket endpoint plugs into the Hub.
type frameHandler interface {
	open(sid core.SessionID, conn *WsSignalConn)
	handle(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte)
	teardown(sid core.SessionID)
}

// Hub owns every live signaling connection and hands out session ids.
type Hub struct {
	opts     Options
	policy   app.Policy
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	live map[core.SessionID]*WsSignalConn
}

func NewHub(opts Options, policy app.Policy) *Hub {
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &Hub{
		opts:   opts.withDefaults(),
		policy: policy,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(opts.AllowedOrigins),
		},
		live: make(map[core.SessionID]*WsSignalConn),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	_, wildcard := set["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(set) == 0 || wildcard || origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) serve(ctx context.Context, c *gin.Context, module string, handler frameHandler) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", module).Msg("ws upgrade")
		return
	}

	sid := core.SessionID(strconv.FormatUint(h.nextID.Add(1), 10))
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, h.opts.SendBuffer),
	}
	h.mu.Lock()
	h.live[sid] = conn
	h.mu.Unlock()
	log.Info().Str("module", module).Str("sid", string(sid)).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	handler.open(sid, conn)
	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, sid, conn)
	go h.readPump(ctx, cancel, sid, conn, handler)
}

func (h *Hub) untrack(sid core.SessionID) {
	h.mu.Lock()
	delete(h.live, sid)
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// CloseAll closes every live connection; each one then runs its teardown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*WsSignalConn, 0, len(h.live))
	for _, c := range h.live {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "signal").Int("count", len(conns)).Msg("closed all connections")
}
