package core

import "errors"

// Frame is a marshaled event ready for the wire.
type Frame []byte

var ErrBackpressure = errors.New("backpressure")

// Connection pushes frames to exactly one remote party.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full outbound buffer is reported as
// ErrBackpressure and the frame is dropped.
type Connection interface {
	TrySend(Frame) error
	Close()
}

// DeliveryResult reports best-effort delivery stats to callers
// that push to many connections at once.
type DeliveryResult struct {
	Sent    int
	Dropped int
}
