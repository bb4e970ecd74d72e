package hub

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/domain"
)

// NotifyStatus tells the original sender that some of their messages
// advanced to a new status. This is a live-update hint, not a delivery
// channel: an offline sender reconciles from the store on next fetch,
// so a routing miss is silent.
func (h *Hub) NotifyStatus(sender domain.UserID, messageIDs []string, status string) {
	conn, ok := h.registry.Lookup(sender)
	if !ok {
		log.Debug().Str("module", "hub.status").Str("user", string(sender)).Msg("sender offline, status dropped")
		return
	}
	push(conn, messageStatusEvent{
		Type:       EvMessageStatus,
		MessageIDs: messageIDs,
		Status:     status,
	})
}

// RelayMessage pushes an already-persisted message to its receiver and
// echoes it back to the sender's other view, both best-effort.
func (h *Hub) RelayMessage(sender, receiver domain.UserID, message json.RawMessage) {
	ev := newMessageEvent{Type: EvNewMessage, Message: message}
	if conn, ok := h.registry.Lookup(receiver); ok {
		push(conn, ev)
	}
	if conn, ok := h.registry.Lookup(sender); ok {
		push(conn, ev)
	}
}
