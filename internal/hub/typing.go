package hub

import "github.com/mkanev/Pulse/internal/domain"

// SetTyping relays an ephemeral typing signal from one user to another.
// Nothing is retained: a later signal supersedes an earlier one by
// effect alone, and an offline recipient simply misses it.
func (h *Hub) SetTyping(from, to domain.UserID, active bool) {
	conn, ok := h.registry.Lookup(to)
	if !ok {
		return
	}
	name := EvTyping
	if !active {
		name = EvStopTyping
	}
	push(conn, typingEvent{Type: name, From: from})
}
