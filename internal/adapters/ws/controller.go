package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/config"
	"github.com/mkanev/Pulse/internal/domain"
	"github.com/mkanev/Pulse/internal/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Hub        *hub.Hub
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func NewController(h *hub.Hub, cfg *config.Config) *Controller {
	ctl := &Controller{
		Hub:        h,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	}
	if ctl.ReadLimit <= 0 {
		ctl.ReadLimit = 32768
	}
	if ctl.PingPeriod <= 0 {
		ctl.PingPeriod = 54 * time.Second
	}
	if ctl.SendBuffer <= 0 {
		ctl.SendBuffer = 32
	}
	return ctl
}

// session is the per-socket state the read pump owns. uid is empty
// until the client identifies via the userId query or a register
// envelope; only the read pump mutates it.
type session struct {
	uid  domain.UserID
	conn *wsConn
}

// HandleSocket upgrades the request and starts the pump goroutines.
// Identification via the userId query registers immediately; otherwise
// the socket stays anonymous until a register envelope arrives.
func (ctl *Controller) HandleSocket(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}

	conn := newConn(ws, ctl.SendBuffer)
	sess := &session{conn: conn}

	if raw := c.Query("userId"); raw != "" {
		uid, err := domain.ParseUserID(raw)
		if err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("raw", raw).Msg("bad userId query")
		} else {
			sess.uid = uid
			ctl.Hub.Connect(uid, conn)
		}
	}
	log.Info().Str("module", "ws").Str("user", string(sess.uid)).Str("client", c.GetString("client_token")).Msg("socket open")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sess)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the socket until it drops. Cleanup is unconditional:
// every exit path cancels the write pump, unregisters the user and
// lets the hub synthesize end-call for any live call. A reconnect that
// already replaced this connection makes Disconnect a no-op.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sess *session) {
	defer func() {
		log.Info().Str("module", "ws").Str("user", string(sess.uid)).Msg("socket closing")
		cancel()
		if sess.uid != "" {
			ctl.Hub.Disconnect(sess.uid, sess.conn)
		}
		sess.conn.Close()
	}()

	sess.conn.conn.SetReadLimit(ctl.ReadLimit)
	readWait := ctl.PingPeriod + 10*time.Second
	_ = sess.conn.conn.SetReadDeadline(time.Now().Add(readWait))
	sess.conn.conn.SetPongHandler(func(string) error {
		return sess.conn.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := sess.conn.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("user", string(sess.uid)).Msg("read error")
				return
			}
			ctl.dispatch(sess, data)
		}
	}
}
