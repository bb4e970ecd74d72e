package hub_test

import (
	"testing"

	"github.com/mkanev/Pulse/internal/domain"
	"github.com/mkanev/Pulse/internal/hub"
)

func TestRegisterReplacesExistingConnection(t *testing.T) {
	r := hub.NewRegistry()
	c1 := &fakeConn{}
	c2 := &fakeConn{}

	r.Register("alice", c1)
	r.Register("alice", c2)

	got, ok := r.Lookup("alice")
	if !ok {
		t.Fatal("Lookup failed after register")
	}
	if got != c2 {
		t.Error("Lookup did not return the replacing connection")
	}
	if len(r.ListOnline()) != 1 {
		t.Errorf("expected one online entry, got %d", len(r.ListOnline()))
	}
}

func TestStaleUnregisterIsNoOp(t *testing.T) {
	r := hub.NewRegistry()
	c1 := &fakeConn{}
	c2 := &fakeConn{}

	r.Register("alice", c1)
	r.Register("alice", c2)

	if r.Unregister("alice", c1) {
		t.Error("stale unregister reported removal")
	}
	if got, ok := r.Lookup("alice"); !ok || got != c2 {
		t.Error("stale unregister evicted the current connection")
	}

	if !r.Unregister("alice", c2) {
		t.Error("current unregister did not report removal")
	}
	if _, ok := r.Lookup("alice"); ok {
		t.Error("Lookup found user after unregister")
	}
}

func TestUnregisterUnknownUser(t *testing.T) {
	r := hub.NewRegistry()
	if r.Unregister("ghost", &fakeConn{}) {
		t.Error("unregister of unknown user reported removal")
	}
}

func TestListOnlineSnapshot(t *testing.T) {
	r := hub.NewRegistry()
	conn := &fakeConn{}

	r.Register("bob", conn)
	online := r.ListOnline()
	if len(online) != 1 || online[0] != "bob" {
		t.Errorf("expected [bob], got %v", online)
	}

	r.Unregister("bob", conn)
	if len(r.ListOnline()) != 0 {
		t.Error("ListOnline still contains user after unregister")
	}
}

func TestListOnlineIsSorted(t *testing.T) {
	r := hub.NewRegistry()
	for _, uid := range []domain.UserID{"carol", "alice", "bob"} {
		r.Register(uid, &fakeConn{})
	}
	online := r.ListOnline()
	want := []domain.UserID{"alice", "bob", "carol"}
	for i, uid := range want {
		if online[i] != uid {
			t.Fatalf("expected %v, got %v", want, online)
		}
	}
}

func TestSnapshotMatchesListOnline(t *testing.T) {
	r := hub.NewRegistry()
	r.Register("alice", &fakeConn{})
	r.Register("bob", &fakeConn{})

	users, conns := r.Snapshot()
	if len(users) != 2 || len(conns) != 2 {
		t.Fatalf("snapshot sizes: users=%d conns=%d", len(users), len(conns))
	}
	online := r.ListOnline()
	for i := range online {
		if users[i] != online[i] {
			t.Errorf("snapshot users %v differ from ListOnline %v", users, online)
		}
	}
}
