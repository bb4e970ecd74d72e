// Package hub is the realtime presence and signaling core: it tracks
// which users are reachable over a live connection, publishes presence,
// relays delivery/typing hints and brokers call signaling. It never
// persists anything; the owning store is the source of truth.
package hub

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/core"
	"github.com/mkanev/Pulse/internal/domain"
)

// Registry is the authoritative user -> connection map. At most one
// connection per user: a reconnect replaces the previous entry, it
// never duplicates it. The registry only routes; it does not close
// replaced connections, that stays with the owning adapter.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.UserID]core.Connection)}
}

// Register unconditionally replaces any existing entry for uid.
func (r *Registry) Register(uid domain.UserID, conn core.Connection) {
	r.mu.Lock()
	_, replaced := r.conns[uid]
	r.conns[uid] = conn
	r.mu.Unlock()
	log.Info().Str("module", "hub.registry").Str("user", string(uid)).Bool("replaced", replaced).Msg("registered")
}

// Unregister removes the mapping only if the stored connection is the
// one passed. A stale disconnect arriving after the user reconnected
// must not evict the new connection.
func (r *Registry) Unregister(uid domain.UserID, conn core.Connection) bool {
	r.mu.Lock()
	cur, ok := r.conns[uid]
	if !ok || cur != conn {
		r.mu.Unlock()
		log.Debug().Str("module", "hub.registry").Str("user", string(uid)).Msg("stale unregister ignored")
		return false
	}
	delete(r.conns, uid)
	r.mu.Unlock()
	log.Info().Str("module", "hub.registry").Str("user", string(uid)).Msg("unregistered")
	return true
}

func (r *Registry) Lookup(uid domain.UserID) (core.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[uid]
	return conn, ok
}

// ListOnline returns a sorted snapshot of currently reachable users.
func (r *Registry) ListOnline() []domain.UserID {
	r.mu.RLock()
	out := make([]domain.UserID, 0, len(r.conns))
	for uid := range r.conns {
		out = append(out, uid)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns the online set together with every live connection,
// taken under one lock so presence broadcasts reflect a single instant.
// Sends happen on the returned slices, never under the registry lock.
func (r *Registry) Snapshot() ([]domain.UserID, []core.Connection) {
	r.mu.RLock()
	users := make([]domain.UserID, 0, len(r.conns))
	conns := make([]core.Connection, 0, len(r.conns))
	for uid, conn := range r.conns {
		users = append(users, uid)
		conns = append(conns, conn)
	}
	r.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, conns
}
