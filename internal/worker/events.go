package worker

import "github.com/libp2p/go-libp2p/core/peer"

// EventKind distinguishes the variants of Event.
type EventKind uint8

const (
	EventPong EventKind = iota
	EventQuery
	EventLogsCollected
)

// Event is the worker behaviour's single outward-facing notification
// type, mirroring the three cases a worker actor reacts to: a pong from
// the scheduler, a query from a gateway, and a watermark update from the
// logs-collector.
type Event struct {
	Kind EventKind

	// Pong
	PongPayload []byte

	// Query
	QueryID      string
	QuerySender  peer.ID
	QueryPayload []byte

	// LogsCollected
	LastSeqNo map[peer.ID]uint64
}
