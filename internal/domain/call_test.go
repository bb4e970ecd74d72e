package domain_test

import (
	"testing"

	"github.com/mkanev/Pulse/internal/domain"
)

func TestPairOfIsOrderIndependent(t *testing.T) {
	if domain.PairOf("alice", "bob") != domain.PairOf("bob", "alice") {
		t.Error("pair key depends on argument order")
	}
	if domain.PairOf("alice", "bob") == domain.PairOf("alice", "carol") {
		t.Error("distinct pairs collide")
	}
}

func TestCallIDsAreTimeOrdered(t *testing.T) {
	a := domain.NewCallID()
	b := domain.NewCallID()
	if !(a < b) {
		t.Errorf("later call ID %s does not sort after %s", b, a)
	}
}

func TestSessionPeer(t *testing.T) {
	s := domain.NewCallSession("alice", "bob")

	if peer, ok := s.Peer("alice"); !ok || peer != "bob" {
		t.Errorf("Peer(alice) = %v, %v", peer, ok)
	}
	if peer, ok := s.Peer("bob"); !ok || peer != "alice" {
		t.Errorf("Peer(bob) = %v, %v", peer, ok)
	}
	if _, ok := s.Peer("mallory"); ok {
		t.Error("outsider resolved to a peer")
	}
	if !s.Active() {
		t.Error("fresh session not active")
	}
}
