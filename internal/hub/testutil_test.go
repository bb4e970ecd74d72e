package hub_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/mkanev/Pulse/internal/core"
)

// fakeConn captures frames instead of writing to a socket. fail makes
// every TrySend report backpressure, simulating a slow peer.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return core.ErrBackpressure
	}
	cp := make(core.Frame, len(f))
	copy(cp, f)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var ev map[string]any
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("captured frame is not JSON: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func (c *fakeConn) lastOfType(t *testing.T, typ string) (map[string]any, bool) {
	t.Helper()
	evs := c.events(t)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i]["type"] == typ {
			return evs[i], true
		}
	}
	return nil, false
}

func (c *fakeConn) countType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			n++
		}
	}
	return n
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}
