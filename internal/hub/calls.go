package hub

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/domain"
)

// CallBroker is a per-pair call state machine. It relays offer, answer,
// ICE and termination between caller and callee, resolved through the
// registry. SDP and candidate bodies are opaque to it.
//
// Sessions are keyed by the unordered participant pair under one
// mutex, so concurrent offers for the same pair serialize: the first
// committed session (the lexicographically smaller ULID) wins and the
// later caller is rejected as busy. All pushes to peers happen outside
// the broker lock.
type CallBroker struct {
	registry    *Registry
	ringTimeout time.Duration

	mu       sync.Mutex
	sessions map[domain.PairKey]*domain.CallSession
	timers   map[domain.CallID]*time.Timer
}

func NewCallBroker(reg *Registry, ringTimeout time.Duration) *CallBroker {
	return &CallBroker{
		registry:    reg,
		ringTimeout: ringTimeout,
		sessions:    make(map[domain.PairKey]*domain.CallSession),
		timers:      make(map[domain.CallID]*time.Timer),
	}
}

// Offer starts a call attempt from caller to callee. The callee gets
// incoming-call if reachable; otherwise the caller gets an immediate
// call-unavailable and no session persists. An active session for the
// pair rejects the new offer as busy, it is never silently overwritten.
func (b *CallBroker) Offer(caller, callee domain.UserID, offer webrtc.SessionDescription) {
	if caller == callee {
		b.rejectOffer(caller, callee, "", EvCallFailed, "self-call")
		return
	}

	pair := domain.PairOf(caller, callee)

	b.mu.Lock()
	if cur, ok := b.sessions[pair]; ok && cur.Active() {
		id := cur.ID
		b.mu.Unlock()
		log.Info().Str("module", "hub.calls").Str("caller", string(caller)).Str("callee", string(callee)).Str("call", string(id)).Msg("offer rejected, pair busy")
		b.rejectOffer(caller, callee, id, EvCallBusy, "busy")
		return
	}
	calleeConn, online := b.registry.Lookup(callee)
	if !online {
		b.mu.Unlock()
		log.Info().Str("module", "hub.calls").Str("caller", string(caller)).Str("callee", string(callee)).Msg("callee offline")
		b.rejectOffer(caller, callee, "", EvCallFailed, "offline")
		return
	}
	sess := domain.NewCallSession(caller, callee)
	b.sessions[pair] = sess
	b.armRingTimer(sess)
	b.mu.Unlock()

	log.Info().Str("module", "hub.calls").Str("call", string(sess.ID)).Str("caller", string(caller)).Str("callee", string(callee)).Msg("ringing")
	push(calleeConn, incomingCallEvent{
		Type:   EvIncomingCall,
		CallID: sess.ID,
		From:   caller,
		Offer:  offer,
	})
}

// Answer moves a ringing session to connected and relays the answer to
// the caller. Only the recorded callee may answer; anything else is a
// protocol violation and is dropped.
func (b *CallBroker) Answer(from, to domain.UserID, answer webrtc.SessionDescription) {
	pair := domain.PairOf(from, to)

	b.mu.Lock()
	sess, ok := b.sessions[pair]
	if !ok || sess.State != domain.CallRinging || sess.Callee != from {
		b.mu.Unlock()
		log.Warn().Str("module", "hub.calls").Str("from", string(from)).Str("to", string(to)).Msg("answer with no ringing session")
		return
	}
	sess.State = domain.CallConnected
	b.disarmRingTimer(sess.ID)
	caller := sess.Caller
	id := sess.ID
	b.mu.Unlock()

	log.Info().Str("module", "hub.calls").Str("call", string(id)).Msg("connected")
	if conn, online := b.registry.Lookup(caller); online {
		push(conn, callAnsweredEvent{Type: EvCallAnswered, CallID: id, Answer: answer})
	}
}

// Candidate relays one ICE candidate between the participants of an
// active session. Candidates for an ended or unknown session are a
// normal race from network jitter and are dropped silently.
func (b *CallBroker) Candidate(from, to domain.UserID, cand webrtc.ICECandidateInit) {
	pair := domain.PairOf(from, to)

	b.mu.Lock()
	sess, ok := b.sessions[pair]
	if !ok || !sess.Active() || !sess.Has(from) {
		b.mu.Unlock()
		log.Debug().Str("module", "hub.calls").Str("from", string(from)).Str("to", string(to)).Msg("stale candidate dropped")
		return
	}
	id := sess.ID
	b.mu.Unlock()

	if conn, online := b.registry.Lookup(to); online {
		push(conn, iceCandidateEvent{Type: EvIceCandidate, CallID: id, From: from, Candidate: cand})
	}
}

// End terminates the pair's session on behalf of from and tells the
// other participant. Ending an already-gone session is a no-op.
func (b *CallBroker) End(from, to domain.UserID) {
	pair := domain.PairOf(from, to)

	b.mu.Lock()
	sess, ok := b.sessions[pair]
	if !ok || !sess.Has(from) {
		b.mu.Unlock()
		return
	}
	b.removeLocked(sess)
	peer, _ := sess.Peer(from)
	id := sess.ID
	b.mu.Unlock()

	log.Info().Str("module", "hub.calls").Str("call", string(id)).Str("by", string(from)).Msg("ended")
	if conn, online := b.registry.Lookup(peer); online {
		push(conn, callEndedEvent{Type: EvCallEnded, CallID: id, From: from, Reason: EndReasonHangup})
	}
}

// EndAllFor synthesizes end-call for every session uid participates in.
// Runs on disconnect; removal under the lock guarantees each peer sees
// call-ended exactly once even if cleanup races an explicit End.
func (b *CallBroker) EndAllFor(uid domain.UserID, reason string) {
	type ended struct {
		id   domain.CallID
		peer domain.UserID
	}

	b.mu.Lock()
	var gone []ended
	for _, sess := range b.sessions {
		if !sess.Has(uid) {
			continue
		}
		b.removeLocked(sess)
		peer, _ := sess.Peer(uid)
		gone = append(gone, ended{id: sess.ID, peer: peer})
	}
	b.mu.Unlock()

	for _, e := range gone {
		log.Info().Str("module", "hub.calls").Str("call", string(e.id)).Str("user", string(uid)).Str("reason", reason).Msg("ended on disconnect")
		if conn, online := b.registry.Lookup(e.peer); online {
			push(conn, callEndedEvent{Type: EvCallEnded, CallID: e.id, From: uid, Reason: reason})
		}
	}
}

// ActiveCount reports how many sessions are live, for the ops endpoint.
func (b *CallBroker) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// removeLocked drops the session from the table and settles its final
// state. Caller holds b.mu.
func (b *CallBroker) removeLocked(sess *domain.CallSession) {
	delete(b.sessions, sess.Pair())
	b.disarmRingTimer(sess.ID)
	if sess.State == domain.CallRinging {
		sess.State = domain.CallCancelled
	} else {
		sess.State = domain.CallEnded
	}
}

func (b *CallBroker) armRingTimer(sess *domain.CallSession) {
	if b.ringTimeout <= 0 {
		return
	}
	id := sess.ID
	pair := sess.Pair()
	b.timers[id] = time.AfterFunc(b.ringTimeout, func() {
		b.expire(pair, id)
	})
}

func (b *CallBroker) disarmRingTimer(id domain.CallID) {
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
}

// expire fires from the ring timer. The session may have been answered,
// ended or replaced since the timer armed, so everything is re-checked.
func (b *CallBroker) expire(pair domain.PairKey, id domain.CallID) {
	b.mu.Lock()
	sess, ok := b.sessions[pair]
	if !ok || sess.ID != id || sess.State != domain.CallRinging {
		b.mu.Unlock()
		return
	}
	b.removeLocked(sess)
	caller, callee := sess.Caller, sess.Callee
	b.mu.Unlock()

	log.Info().Str("module", "hub.calls").Str("call", string(id)).Msg("ring timeout")
	for _, uid := range []domain.UserID{caller, callee} {
		if conn, online := b.registry.Lookup(uid); online {
			push(conn, callEndedEvent{Type: EvCallEnded, CallID: id, Reason: EndReasonTimeout})
		}
	}
}

// rejectOffer tells the would-be caller their attempt did not start.
func (b *CallBroker) rejectOffer(caller, callee domain.UserID, id domain.CallID, event, reason string) {
	conn, online := b.registry.Lookup(caller)
	if !online {
		return
	}
	push(conn, callRejectedEvent{Type: event, CallID: id, To: callee, Reason: reason})
}
