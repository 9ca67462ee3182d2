package worker

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// PingsTopic is the gossip topic workers broadcast liveness pings on.
const PingsTopic = "pings"

// LogsCollectedTopic is the gossip topic the logs-collector broadcasts
// archive-watermark updates on.
const LogsCollectedTopic = "logs-collected"

// QueryProtocol is a dedicated request/response stream protocol: a
// gateway speaking it opens a stream, writes a framed Query, and keeps
// the stream open until the worker writes the framed QueryResult back
// on it directly, rather than receiving the result via a separate
// unicast send correlated by query ID. Queries arriving over the
// generic legacy unicast protocol instead (no open stream to reply on)
// fall back to that separate unicast send in SendQueryResult.
const QueryProtocol = "/subsquid-worker/query/0.0.1"

// queryStreamReadTimeout bounds only the initial framed read of an
// inbound QueryProtocol stream; once a Query has been read, the stream
// is held open with no deadline until SendQueryResult replies on it,
// since query execution time is not bounded here.
const queryStreamReadTimeout = 60 * time.Second

// Kind tags the payload carried by a unicast Envelope; gossip deliveries
// are tagged by topic instead and never carry a Kind.
type Kind uint8

const (
	KindPong Kind = iota + 1
	KindQuery
	KindQueryResult
	KindQueryLogs
)

// Envelope is the single wire type the worker's transport instance is
// parameterized over; unicast sends multiplex on Kind, broadcasts are
// identified by topic alone.
type Envelope struct {
	Kind Kind
	Body []byte
}

// Default per-message size caps, used when Config leaves the
// corresponding field at zero.
const (
	MaxPongSize        = 1 << 20
	MaxQuerySize       = 4 << 20
	MaxQueryResultSize = 16 << 20
	MaxQueryLogsSize   = 16 << 20
)

// Config configures one worker behaviour instance.
type Config struct {
	Self          peer.ID
	Scheduler     peer.ID
	LogsCollector peer.ID

	// Per-message size caps. Inbound messages over the cap are dropped
	// with a warning; SendQueryResult/SendLogs reject outbound payloads
	// over the cap rather than let a stream write fail mid-flight.
	MaxPongSize        int
	MaxQuerySize       int
	MaxQueryResultSize int
	MaxQueryLogsSize   int

	// LogsRetryBackoff is the delay between repeated attempts to deliver
	// a logs batch after a PeerUnknown or Timeout outbound failure.
	LogsRetryBackoff time.Duration
	LogsRetryMax     int

	InboundQueueSize int
}

func (c *Config) setDefaults() {
	if c.MaxPongSize <= 0 {
		c.MaxPongSize = MaxPongSize
	}
	if c.MaxQuerySize <= 0 {
		c.MaxQuerySize = MaxQuerySize
	}
	if c.MaxQueryResultSize <= 0 {
		c.MaxQueryResultSize = MaxQueryResultSize
	}
	if c.MaxQueryLogsSize <= 0 {
		c.MaxQueryLogsSize = MaxQueryLogsSize
	}
	if c.LogsRetryBackoff <= 0 {
		c.LogsRetryBackoff = 5 * time.Second
	}
	if c.LogsRetryMax <= 0 {
		c.LogsRetryMax = 3
	}
	if c.InboundQueueSize <= 0 {
		c.InboundQueueSize = 256
	}
}
