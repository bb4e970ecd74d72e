package hub

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/core"
	"github.com/mkanev/Pulse/internal/domain"
)

// FanOut delivers one event to each recipient the persistence layer
// precomputed (group members, status audience). Recipient failures are
// independent: an offline user or a full buffer never aborts the rest.
func (h *Hub) FanOut(recipients []domain.UserID, event string, payload json.RawMessage) core.DeliveryResult {
	f, ok := encode(genericEvent{Type: event, Payload: payload})
	if !ok {
		return core.DeliveryResult{Dropped: len(recipients)}
	}
	res := core.DeliveryResult{}
	for _, uid := range recipients {
		conn, online := h.registry.Lookup(uid)
		if !online {
			res.Dropped++
			continue
		}
		if err := conn.TrySend(f); err != nil {
			res.Dropped++
			continue
		}
		res.Sent++
	}
	log.Debug().Str("module", "hub.fanout").Str("event", event).Int("sent", res.Sent).Int("dropped", res.Dropped).Msg("fan-out")
	return res
}

// Broadcast delivers one event to every connected user, for facts with
// no recipient list (statusCreated, statusDeleted).
func (h *Hub) Broadcast(event string, payload json.RawMessage) core.DeliveryResult {
	f, ok := encode(genericEvent{Type: event, Payload: payload})
	if !ok {
		return core.DeliveryResult{}
	}
	_, conns := h.registry.Snapshot()
	res := core.DeliveryResult{}
	for _, conn := range conns {
		if err := conn.TrySend(f); err != nil {
			res.Dropped++
			continue
		}
		res.Sent++
	}
	log.Debug().Str("module", "hub.fanout").Str("event", event).Int("sent", res.Sent).Int("dropped", res.Dropped).Msg("broadcast")
	return res
}
