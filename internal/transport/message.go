// Package transport implements the generic P2P transport eventloop: it
// owns a substrate swarm exclusively, multiplexes swarm events against
// four command channels, and surfaces inbound messages as a pull stream.
// Role behaviors (see internal/worker) compose on top of the Handle.
package transport

import (
	"github.com/libp2p/go-libp2p/core/peer"
)

// ConnID is a monotonically assigned identifier for an established
// connection (inbound or outbound), assigned in notifiee.go. Dial attempts
// get no ConnID: dialNow resolves a dial's waiter from host.Connect's
// return value directly.
type ConnID uint64

// Message is a unicast or broadcast envelope. Exactly one of Recipient or
// Topic is set: Recipient-only is a unicast request, Topic-only is a
// broadcast publish.
type Message[T any] struct {
	Recipient *peer.ID
	Topic     *string
	Payload   T
}

// Unicast builds a recipient-addressed Message.
func Unicast[T any](to peer.ID, payload T) Message[T] {
	return Message[T]{Recipient: &to, Payload: payload}
}

// Broadcast builds a topic-addressed Message.
func Broadcast[T any](topic string, payload T) Message[T] {
	return Message[T]{Topic: &topic, Payload: payload}
}

// Inbound is a received message paired with its source peer (unset for
// messages the local process cannot attribute, which should not occur in
// practice but is represented rather than panicking).
type Inbound[T any] struct {
	Source  peer.ID
	Topic   string // empty for unicast request/response deliveries
	Payload T
}

// Subscription describes one gossip topic's desired state.
type Subscription struct {
	Topic           string
	Subscribed      bool
	AllowUnordered bool
}

// DialCommand asks the transport to ensure a connection to Peer exists.
type DialCommand struct {
	Peer   peer.ID
	Result chan<- bool
}

// PendingMessage is a unicast payload buffered while its destination is
// being resolved via the DHT.
type PendingMessage[T any] struct {
	Recipient peer.ID
	Payload   T
}
