package transport

import "errors"

var (
	// ErrQueueFull is returned by a try-send handle method when the target
	// command channel has no free capacity.
	ErrQueueFull = errors.New("transport: queue full")

	// ErrTransportClosed names a closed transport. No Handle method
	// returns it: after the eventloop exits, TrySendMessage and
	// TrySubscribe keep enqueueing until the channel is full and then
	// return ErrQueueFull, and DialPeer returns ErrDialTimeout.
	ErrTransportClosed = errors.New("transport: closed")

	// ErrDialTimeout is returned by DialPeer when no resolution arrives
	// within the end-to-end dial timeout.
	ErrDialTimeout = errors.New("transport: dial timed out")

	// ErrOldMessage marks a gossip message rejected for carrying a
	// sequence number not strictly greater than the last accepted one.
	ErrOldMessage = errors.New("transport: old message")

	// ErrUnknownTopic marks a gossip message rejected for a topic the
	// transport is not currently subscribed to.
	ErrUnknownTopic = errors.New("transport: unknown topic")

	// ErrMissingSource marks a gossip message rejected for carrying no
	// attributable source peer.
	ErrMissingSource = errors.New("transport: missing source")

	// ErrMissingSequence marks a gossip message rejected for omitting a
	// sequence number on an ordered topic.
	ErrMissingSequence = errors.New("transport: missing sequence number")

	// ErrFutureSequence marks a gossip message rejected for carrying a
	// sequence number ahead of the local wall clock.
	ErrFutureSequence = errors.New("transport: sequence number in the future")
)

// InboundFailure is a non-fatal surfaced failure on the inbound request
// path (decode, framing, or handler error on a receiving stream).
type InboundFailure struct {
	Peer string
	Err  error
}

func (e *InboundFailure) Error() string { return "transport: inbound failure from " + e.Peer + ": " + e.Err.Error() }
func (e *InboundFailure) Unwrap() error { return e.Err }

// OutboundFailure is a non-fatal surfaced failure on the outbound
// request path (dial, write, or peer-side rejection).
type OutboundFailure struct {
	Peer string
	Err  error
}

func (e *OutboundFailure) Error() string {
	return "transport: outbound failure to " + e.Peer + ": " + e.Err.Error()
}
func (e *OutboundFailure) Unwrap() error { return e.Err }
