package transport

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// swarmEvent is the sum type fed into Transport.events; every source that
// can produce one (connection notifications, identify, gossip delivery,
// legacy protocol requests, DHT query completion) runs on its own
// goroutine and sends here rather than being polled inline, so the
// eventloop itself never blocks on I/O.
type swarmEvent interface{ isSwarmEvent() }

type connEstablishedEvent struct {
	Peer peer.ID
	ID   ConnID
}

func (connEstablishedEvent) isSwarmEvent() {}

type connClosedEvent struct {
	Peer peer.ID
	ID   ConnID
}

func (connClosedEvent) isSwarmEvent() {}

type connFailedEvent struct {
	Peer peer.ID
	ID   ConnID
	Err  error
}

func (connFailedEvent) isSwarmEvent() {}

type identifyEvent struct {
	Peer          peer.ID
	ReachableAddr bool
}

func (identifyEvent) isSwarmEvent() {}

// queryResultEvent reports the completion of a DHT GetClosestPeers lookup
// started by lookupPeer. The Go DHT client's GetClosestPeers call is
// blocking rather than a streamed sequence of progress events, so a
// lookup's single goroutine reports exactly one queryResultEvent instead
// of the repeated "progressed" notifications the originating design
// observed; the observable peer_found / peer_not_found semantics are
// unchanged.
type queryResultEvent struct {
	Target peer.ID
	Found  bool
}

func (queryResultEvent) isSwarmEvent() {}

// gossipMsgEvent is submitted by a topic validator callback (running on a
// pubsub-internal goroutine) and answered by the eventloop via Reply,
// which the validator goroutine blocks on. This keeps the ordering and
// sequence-number state exclusively owned by the eventloop without a
// mutex, at the cost of the validator goroutine (not the eventloop)
// blocking briefly.
type gossipMsgEvent struct {
	TopicHash string
	Source    peer.ID
	HasSource bool
	SeqNo     uint64
	HasSeqNo  bool
	Data      []byte
	Reply     chan<- pubsub.ValidationResult
}

func (gossipMsgEvent) isSwarmEvent() {}

type requestEvent struct {
	Peer    peer.ID
	Payload []byte
	Ack     func()
}

func (requestEvent) isSwarmEvent() {}

// now is indirected so tests can fake wall-clock future-sequence checks
// without relying on real time.
var now = func() uint64 { return uint64(time.Now().UnixNano()) }
