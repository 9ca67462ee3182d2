// Package worker specializes the generic transport for a worker node:
// it receives queries from gateways, returns results, publishes pings,
// receives pongs from the scheduler, ships logs to a logs-collector, and
// learns how far its own logs have been durably archived.
//
// The concrete wire schemas for these payloads are explicitly a
// collaborator concern; the types below exist only so this package has
// something concrete to route and de-duplicate on, matching the "opaque
// byte payload with a few typed fields" framing used throughout.
package worker

import (
	"bytes"
	"encoding/gob"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Ping is published by a worker on the pings topic to announce liveness
// and capability.
type Ping struct {
	Payload []byte
}

// Pong is unicast from the scheduler to a worker.
type Pong struct {
	Payload []byte
}

// Query is a unicast request from a gateway to a worker.
type Query struct {
	ID        string
	Signature []byte
	Payload   []byte
}

// QueryResult is the worker's response to a Query, correlated by ID.
type QueryResult struct {
	QueryID string
	Payload []byte
}

// QueryExecuted is one entry in a QueryLogs batch.
type QueryExecuted struct {
	QueryID string
	SeqNo   uint64
	Payload []byte
}

// QueryLogs is a batch pushed from a worker to the logs-collector.
type QueryLogs struct {
	Entries []QueryExecuted
}

// LogsCollected is broadcast by the logs-collector, reporting the last
// durably archived sequence number per worker.
type LogsCollected struct {
	LastSeqNo map[peer.ID]uint64
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
