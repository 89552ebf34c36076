package core

import "errors"

// Frame is a raw outbound message (a JSON document for the signaling socket).
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full queue reports ErrBackpressure.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
