package hub

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/core"
	"github.com/mkanev/Pulse/internal/domain"
)

type Options struct {
	// RingTimeout bounds how long a call may stay ringing before the
	// hub ends it on its own. Zero disables the timer.
	RingTimeout time.Duration
}

// Hub wires the registry and the call broker together and owns the
// connection lifecycle entrypoints used by the transport adapter.
type Hub struct {
	registry *Registry
	calls    *CallBroker
}

func New(opts Options) *Hub {
	reg := NewRegistry()
	return &Hub{
		registry: reg,
		calls:    NewCallBroker(reg, opts.RingTimeout),
	}
}

func (h *Hub) Calls() *CallBroker { return h.calls }

// Connect registers uid's live connection and publishes presence.
// A reconnect replaces the previous mapping; the stale socket keeps
// its own disconnect path, which Unregister will recognize as stale.
func (h *Hub) Connect(uid domain.UserID, conn core.Connection) {
	h.registry.Register(uid, conn)
	h.publishPresence()
}

// Disconnect runs on every exit path of a connection worker. Call
// cleanup only happens when the dropped connection was still current:
// a stale disconnect must not tear down calls of the reconnected user.
func (h *Hub) Disconnect(uid domain.UserID, conn core.Connection) {
	if !h.registry.Unregister(uid, conn) {
		return
	}
	h.calls.EndAllFor(uid, EndReasonPeerGone)
	h.publishPresence()
}

func (h *Hub) Online() []domain.UserID {
	return h.registry.ListOnline()
}

// publishPresence broadcasts the full current online set to every
// connection. The set is small and the event idempotent, so no
// per-peer subscription tracking is needed. Each send is independent
// best-effort; one closed peer never blocks the rest.
func (h *Hub) publishPresence() {
	users, conns := h.registry.Snapshot()
	f, ok := encode(presenceEvent{Type: EvOnlineUsers, Users: users})
	if !ok {
		return
	}
	res := core.DeliveryResult{}
	for _, conn := range conns {
		if err := conn.TrySend(f); err != nil {
			res.Dropped++
			continue
		}
		res.Sent++
	}
	log.Debug().Str("module", "hub").Int("online", len(users)).Int("sent", res.Sent).Int("dropped", res.Dropped).Msg("presence published")
}
