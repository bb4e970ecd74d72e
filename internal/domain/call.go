package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// CallID is a ULID: time-ordered, so of two concurrently created calls
// the earlier one compares lexicographically smaller.
type CallID string

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

func NewCallID() CallID {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return CallID(ulid.MustNew(ulid.Now(), ulidEntropy).String())
}

type CallState int

const (
	CallRinging CallState = iota
	CallConnected
	CallEnded
	CallCancelled
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	case CallCancelled:
		return "cancelled"
	}
	return "unknown"
}

// PairKey identifies the unordered pair of call participants.
type PairKey string

func PairOf(a, b UserID) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey(string(a) + "|" + string(b))
}

type CallSession struct {
	ID        CallID
	Caller    UserID
	Callee    UserID
	State     CallState
	CreatedAt time.Time
}

func NewCallSession(caller, callee UserID) *CallSession {
	return &CallSession{
		ID:        NewCallID(),
		Caller:    caller,
		Callee:    callee,
		State:     CallRinging,
		CreatedAt: time.Now(),
	}
}

func (c *CallSession) Pair() PairKey {
	return PairOf(c.Caller, c.Callee)
}

func (c *CallSession) Active() bool {
	return c.State == CallRinging || c.State == CallConnected
}

func (c *CallSession) Has(u UserID) bool {
	return u == c.Caller || u == c.Callee
}

// Peer returns the other participant, false if u is not in the call.
func (c *CallSession) Peer(u UserID) (UserID, bool) {
	switch u {
	case c.Caller:
		return c.Callee, true
	case c.Callee:
		return c.Caller, true
	}
	return "", false
}
