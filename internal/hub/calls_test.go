package hub_test

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/mkanev/Pulse/internal/hub"
)

var (
	testOffer  = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	testAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
)

func testCandidate() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 9 typ host"}
}

func twoUsers(t *testing.T, h *hub.Hub) (*fakeConn, *fakeConn) {
	t.Helper()
	ca := &fakeConn{}
	cb := &fakeConn{}
	h.Connect("alice", ca)
	h.Connect("bob", cb)
	return ca, cb
}

func TestCallHappyPath(t *testing.T) {
	h := newHub()
	ca, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)

	ring, ok := cb.lastOfType(t, "incoming-call")
	if !ok {
		t.Fatal("callee did not receive incoming-call")
	}
	if ring["from"] != "alice" {
		t.Errorf("expected from=alice, got %v", ring["from"])
	}
	if ring["offer"].(map[string]any)["sdp"] != testOffer.SDP {
		t.Error("offer SDP not relayed intact")
	}
	if h.Calls().ActiveCount() != 1 {
		t.Fatalf("expected one active session, got %d", h.Calls().ActiveCount())
	}

	h.Calls().Answer("bob", "alice", testAnswer)

	answered, ok := ca.lastOfType(t, "call-answered")
	if !ok {
		t.Fatal("caller did not receive call-answered")
	}
	if answered["answer"].(map[string]any)["sdp"] != testAnswer.SDP {
		t.Error("answer SDP not relayed intact")
	}

	h.Calls().Candidate("alice", "bob", testCandidate())
	if _, ok := cb.lastOfType(t, "ice-candidate"); !ok {
		t.Error("candidate not relayed while connected")
	}

	h.Calls().End("bob", "alice")

	if _, ok := ca.lastOfType(t, "call-ended"); !ok {
		t.Error("peer did not receive call-ended")
	}
	if h.Calls().ActiveCount() != 0 {
		t.Error("session still active after end-call")
	}
}

func TestStaleCandidateAfterEndIsDropped(t *testing.T) {
	h := newHub()
	_, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)
	h.Calls().Answer("bob", "alice", testAnswer)
	h.Calls().End("alice", "bob")

	before := cb.countType(t, "ice-candidate")
	h.Calls().Candidate("alice", "bob", testCandidate())
	if cb.countType(t, "ice-candidate") != before {
		t.Error("candidate for ended session was delivered")
	}
}

func TestOfferToOfflineCallee(t *testing.T) {
	h := newHub()
	ca := &fakeConn{}
	h.Connect("alice", ca)

	h.Calls().Offer("alice", "bob", testOffer)

	ev, ok := ca.lastOfType(t, "call-unavailable")
	if !ok {
		t.Fatal("caller did not receive an immediate failure")
	}
	if ev["to"] != "bob" {
		t.Errorf("expected to=bob, got %v", ev["to"])
	}
	if h.Calls().ActiveCount() != 0 {
		t.Error("session persisted for an offline callee")
	}
}

func TestSecondOfferForBusyPairRejected(t *testing.T) {
	h := newHub()
	_, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)
	ringsBefore := cb.countType(t, "incoming-call")

	h.Calls().Offer("alice", "bob", testOffer)

	if cb.countType(t, "incoming-call") != ringsBefore {
		t.Error("second offer overwrote the ringing call")
	}
	if h.Calls().ActiveCount() != 1 {
		t.Errorf("expected one session, got %d", h.Calls().ActiveCount())
	}
}

func TestSimultaneousOffersResolveDeterministically(t *testing.T) {
	h := newHub()
	ca, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)
	h.Calls().Offer("bob", "alice", testOffer)

	// First committed session wins; the counter-offer is rejected busy.
	if h.Calls().ActiveCount() != 1 {
		t.Fatalf("expected exactly one surviving session, got %d", h.Calls().ActiveCount())
	}
	busy, ok := cb.lastOfType(t, "call-busy")
	if !ok {
		t.Fatal("losing caller did not receive call-busy")
	}
	if busy["to"] != "alice" {
		t.Errorf("expected rejection for target alice, got %v", busy["to"])
	}
	if n := ca.countType(t, "incoming-call"); n != 0 {
		t.Errorf("loser's offer still rang the other side %d times", n)
	}

	// The surviving call must still be answerable by its recorded callee.
	h.Calls().Answer("bob", "alice", testAnswer)
	if _, ok := ca.lastOfType(t, "call-answered"); !ok {
		t.Error("surviving session did not connect")
	}
}

func TestAnswerWithoutRingingSessionIgnored(t *testing.T) {
	h := newHub()
	ca, _ := twoUsers(t, h)

	h.Calls().Answer("bob", "alice", testAnswer)
	if _, ok := ca.lastOfType(t, "call-answered"); ok {
		t.Error("answer without a session was relayed")
	}
}

func TestOnlyRecordedCalleeMayAnswer(t *testing.T) {
	h := newHub()
	ca, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)
	// The caller tries to answer their own call.
	h.Calls().Answer("alice", "bob", testAnswer)

	if _, ok := ca.lastOfType(t, "call-answered"); ok {
		t.Error("caller answering own call was relayed")
	}
	if _, ok := cb.lastOfType(t, "call-answered"); ok {
		t.Error("callee received call-answered nobody sent")
	}
}

func TestSelfCallRejected(t *testing.T) {
	h := newHub()
	ca := &fakeConn{}
	h.Connect("alice", ca)

	h.Calls().Offer("alice", "alice", testOffer)

	if _, ok := ca.lastOfType(t, "call-unavailable"); !ok {
		t.Error("self-call was not rejected")
	}
	if h.Calls().ActiveCount() != 0 {
		t.Error("self-call created a session")
	}
}

func TestDisconnectMidCallSynthesizesEndExactlyOnce(t *testing.T) {
	h := newHub()
	ca, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)
	h.Calls().Answer("bob", "alice", testAnswer)

	h.Disconnect("bob", cb)

	ended, ok := ca.lastOfType(t, "call-ended")
	if !ok {
		t.Fatal("peer did not observe synthesized end-call")
	}
	if ended["reason"] != "peer-disconnected" {
		t.Errorf("expected reason peer-disconnected, got %v", ended["reason"])
	}
	if n := ca.countType(t, "call-ended"); n != 1 {
		t.Errorf("peer observed end-call %d times, want exactly once", n)
	}
	if h.Calls().ActiveCount() != 0 {
		t.Error("session leaked after participant disconnect")
	}

	// A late explicit end-call from the survivor must change nothing.
	h.Calls().End("alice", "bob")
	if n := ca.countType(t, "call-ended"); n != 1 {
		t.Errorf("late end-call produced a duplicate, got %d events", n)
	}
}

func TestStaleDisconnectKeepsCallAlive(t *testing.T) {
	h := newHub()
	ca := &fakeConn{}
	cb1 := &fakeConn{}
	h.Connect("alice", ca)
	h.Connect("bob", cb1)

	h.Calls().Offer("alice", "bob", testOffer)

	// Bob reconnects; the stale socket's disconnect arrives afterwards.
	cb2 := &fakeConn{}
	h.Connect("bob", cb2)
	h.Disconnect("bob", cb1)

	if h.Calls().ActiveCount() != 1 {
		t.Error("stale disconnect tore down the live call")
	}
	if n := ca.countType(t, "call-ended"); n != 0 {
		t.Errorf("stale disconnect synthesized end-call %d times", n)
	}
}

func TestRingTimeoutExpiresSession(t *testing.T) {
	h := hub.New(hub.Options{RingTimeout: 20 * time.Millisecond})
	ca, cb := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)

	deadline := time.Now().Add(time.Second)
	for h.Calls().ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("ringing session never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for name, c := range map[string]*fakeConn{"caller": ca, "callee": cb} {
		ev, ok := c.lastOfType(t, "call-ended")
		if !ok {
			t.Fatalf("%s did not observe the timeout", name)
		}
		if ev["reason"] != "timeout" {
			t.Errorf("%s got reason %v, want timeout", name, ev["reason"])
		}
	}

	// The expired call can no longer be answered.
	h.Calls().Answer("bob", "alice", testAnswer)
	if _, ok := ca.lastOfType(t, "call-answered"); ok {
		t.Error("expired session was answered")
	}
}

func TestAnswerCancelsRingTimer(t *testing.T) {
	h := hub.New(hub.Options{RingTimeout: 20 * time.Millisecond})
	ca, _ := twoUsers(t, h)

	h.Calls().Offer("alice", "bob", testOffer)
	h.Calls().Answer("bob", "alice", testAnswer)

	time.Sleep(60 * time.Millisecond)

	if h.Calls().ActiveCount() != 1 {
		t.Error("answered call was expired by the ring timer")
	}
	if n := ca.countType(t, "call-ended"); n != 0 {
		t.Errorf("connected call received %d call-ended events", n)
	}
}
