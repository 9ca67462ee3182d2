package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/subsquid-network/p2p-transport/internal/codec"
	"github.com/subsquid-network/p2p-transport/internal/substrate"
	"github.com/subsquid-network/p2p-transport/internal/transport"
)

// Codec is the transport codec for Envelope, shared by every worker
// instance; it is exported so callers wiring transport.Config by hand
// (tests, cmd/p2p-worker) can reuse it verbatim.
var Codec = transport.Codec[Envelope]{
	Encode: func(e Envelope) ([]byte, error) { return gobEncode(e) },
	Decode: func(b []byte) (Envelope, error) {
		var e Envelope
		err := gobDecode(b, &e)
		return e, err
	},
}

// Behaviour runs a worker's role logic on top of a generic transport
// instance: it publishes pings, answers queries, forwards query results,
// ships query logs, and tracks the logs-collector's archive watermark.
// It blocks any peer that claims the scheduler or logs-collector role
// without holding that identity.
type Behaviour struct {
	cfg    Config
	handle transport.Handle[Envelope]
	sub    *substrate.Substrate
	gater  *substrate.BlockListGater

	events chan Event

	mu                    sync.Mutex
	querySenders          map[string]peer.ID
	queryResponseChannels map[string]network.Stream
}

// New builds a Behaviour bound to an already-started transport handle.
// sub, if non-nil, is used to register the dedicated QueryProtocol
// stream handler (see SendQueryResult); gater, if non-nil, is used to
// permanently block peers caught impersonating the scheduler or
// logs-collector.
func New(cfg Config, handle transport.Handle[Envelope], sub *substrate.Substrate, gater *substrate.BlockListGater) *Behaviour {
	cfg.setDefaults()
	return &Behaviour{
		cfg:                   cfg,
		handle:                handle,
		sub:                   sub,
		gater:                 gater,
		events:                make(chan Event, cfg.InboundQueueSize),
		querySenders:          make(map[string]peer.ID),
		queryResponseChannels: make(map[string]network.Stream),
	}
}

// Events returns the channel of worker-level notifications.
func (b *Behaviour) Events() <-chan Event { return b.events }

// Run subscribes to the logs-collected topic and to the pings topic (the
// transport only publishes on joined topics, so SendPing needs it) and
// pumps the transport's inbound channel into role-specific handling until
// ctx is done or the transport closes. Call it from its own goroutine.
func (b *Behaviour) Run(ctx context.Context) {
	if err := b.handle.Subscribe(LogsCollectedTopic, false); err != nil {
		slog.Error("worker: failed to subscribe to logs-collected", "err", err)
	}
	if err := b.handle.Subscribe(PingsTopic, false); err != nil {
		slog.Error("worker: failed to subscribe to pings", "err", err)
	}
	if b.sub != nil {
		b.sub.Host.SetStreamHandler(protocol.ID(QueryProtocol), b.handleQueryStream)
	}
	defer close(b.events)

	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-b.handle.Inbound():
			if !ok {
				return
			}
			b.onInbound(in)
		}
	}
}

func (b *Behaviour) onInbound(in transport.Inbound[Envelope]) {
	switch in.Topic {
	case LogsCollectedTopic:
		b.onLogsCollected(in.Source, in.Payload)
	case PingsTopic:
		// Pings (including this worker's own) need no handling here.
	case "":
		b.onUnicast(in.Source, in.Payload)
	default:
		slog.Warn("worker: inbound on unexpected topic", "topic", in.Topic)
	}
}

// onLogsCollected handles the logs-collector's watermark broadcast.
// Per the inbound decision table, a broadcast from a peer other than the
// configured logs-collector is impersonation: the sender is permanently
// blocked and the broadcast is discarded.
func (b *Behaviour) onLogsCollected(src peer.ID, env Envelope) {
	if src != b.cfg.LogsCollector {
		b.blockImpersonator(src, "logs-collected broadcast")
		return
	}
	var lc LogsCollected
	if err := gobDecode(env.Body, &lc); err != nil {
		slog.Warn("worker: malformed logs-collected payload", "peer", src, "err", err)
		return
	}
	b.events <- Event{Kind: EventLogsCollected, LastSeqNo: lc.LastSeqNo}
}

func (b *Behaviour) onUnicast(src peer.ID, env Envelope) {
	switch env.Kind {
	case KindPong:
		b.onPong(src, env.Body)
	case KindQuery:
		// No open stream to reply on: SendQueryResult falls back to a
		// separate unicast send for queries that arrive this way.
		b.onQuery(src, env.Body, nil)
	case KindQueryResult, KindQueryLogs:
		slog.Warn("worker: received outbound-only message kind", "kind", env.Kind, "peer", src)
	default:
		slog.Warn("worker: unknown message kind", "kind", env.Kind, "peer", src)
	}
}

// onPong handles a pong unicast. A pong from a peer other than the
// configured scheduler is impersonation: block and drop.
func (b *Behaviour) onPong(src peer.ID, payload []byte) {
	if src != b.cfg.Scheduler {
		b.blockImpersonator(src, "pong")
		return
	}
	if len(payload) > b.cfg.MaxPongSize {
		slog.Warn("worker: dropping oversized pong", "peer", src, "size", len(payload))
		return
	}
	b.events <- Event{Kind: EventPong, PongPayload: payload}
}

// onQuery handles a query arriving either as a legacy unicast (stream
// is nil; SendQueryResult must reply via a separate unicast send) or on
// the dedicated QueryProtocol stream (stream is the still-open stream
// SendQueryResult should reply on directly). Duplicate query IDs from a
// live sender are dropped: the worker already owes that sender exactly
// one result. Returns whether the query was accepted, so a caller
// holding a stream on the rejected path knows to reset it.
func (b *Behaviour) onQuery(src peer.ID, body []byte, stream network.Stream) bool {
	if len(body) > b.cfg.MaxQuerySize {
		slog.Warn("worker: dropping oversized query", "peer", src, "size", len(body))
		return false
	}
	var q Query
	if err := gobDecode(body, &q); err != nil {
		slog.Warn("worker: malformed query payload", "peer", src, "err", err)
		return false
	}

	b.mu.Lock()
	if _, dup := b.querySenders[q.ID]; dup {
		b.mu.Unlock()
		slog.Warn("worker: dropping duplicate query id", "query_id", q.ID, "peer", src)
		return false
	}
	b.querySenders[q.ID] = src
	if stream != nil {
		b.queryResponseChannels[q.ID] = stream
	}
	b.mu.Unlock()

	b.events <- Event{Kind: EventQuery, QueryID: q.ID, QuerySender: src, QueryPayload: q.Payload}
	return true
}

// handleQueryStream is the QueryProtocol stream handler: it reads one
// framed Query, hands it to onQuery keeping the stream open on success,
// and resets the stream on any rejection (oversized, malformed,
// duplicate id) since nothing will ever reply on it.
func (b *Behaviour) handleQueryStream(s network.Stream) {
	_ = s.SetReadDeadline(time.Now().Add(queryStreamReadTimeout))
	body, err := codec.ReadFramed(s)
	if err != nil {
		slog.Debug("worker: query stream read failed", "peer", s.Conn().RemotePeer(), "err", err)
		_ = s.Reset()
		return
	}
	_ = s.SetReadDeadline(time.Time{})

	if !b.onQuery(s.Conn().RemotePeer(), body, s) {
		_ = s.Reset()
	}
}

// PendingQueryCount reports how many query ids are currently waiting on
// a SendQueryResult call. A query whose sender disappears before a
// result is ready stays here indefinitely: this map is an intentional,
// documented leak rather than a bug (see DESIGN.md), and tests assert
// its shape directly through this accessor.
func (b *Behaviour) PendingQueryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.querySenders)
}

func (b *Behaviour) blockImpersonator(src peer.ID, what string) {
	slog.Warn("worker: blocking peer for role impersonation", "peer", src, "message", what)
	if b.gater != nil {
		b.gater.Block(src)
	}
}

// SendPing broadcasts a liveness ping on PingsTopic.
func (b *Behaviour) SendPing(payload []byte) error {
	return b.handle.BroadcastMsg(PingsTopic, Envelope{Kind: 0, Body: payload})
}

// SendQueryResult delivers a result for queryID, consuming the dedup
// entry so a later query with the same ID (should one ever arrive) is
// treated as fresh rather than a duplicate of a request already
// answered. If the query arrived on the dedicated QueryProtocol stream,
// the result is written directly back on that stream (fast path); if it
// arrived as a legacy unicast with no open stream to reply on, this
// falls back to a separate unicast send correlated by sender.
func (b *Behaviour) SendQueryResult(queryID string, payload []byte) error {
	if len(payload) > b.cfg.MaxQueryResultSize {
		return fmt.Errorf("worker: query result for %s exceeds max size %d", queryID, b.cfg.MaxQueryResultSize)
	}
	b.mu.Lock()
	sender, hasSender := b.querySenders[queryID]
	if hasSender {
		delete(b.querySenders, queryID)
	}
	stream, hasStream := b.queryResponseChannels[queryID]
	if hasStream {
		delete(b.queryResponseChannels, queryID)
	}
	b.mu.Unlock()
	if !hasSender {
		return fmt.Errorf("worker: no known sender for query id %s", queryID)
	}

	body, err := gobEncode(QueryResult{QueryID: queryID, Payload: payload})
	if err != nil {
		return err
	}

	if hasStream {
		defer stream.Close()
		if err := codec.WriteFramed(stream, body); err != nil {
			return fmt.Errorf("worker: failed to write query result on open stream for %s: %w", queryID, err)
		}
		return nil
	}

	return b.handle.SendDirectMsg(sender, Envelope{Kind: KindQueryResult, Body: body})
}

// SendLogs delivers a batch of executed-query log entries to the
// configured logs-collector, retrying with backoff on a dial timeout or
// unknown-peer outbound failure up to cfg.LogsRetryMax attempts.
func (b *Behaviour) SendLogs(ctx context.Context, entries []QueryExecuted) error {
	body, err := gobEncode(QueryLogs{Entries: entries})
	if err != nil {
		return err
	}
	if len(body) > b.cfg.MaxQueryLogsSize {
		return fmt.Errorf("worker: logs batch exceeds max size %d", b.cfg.MaxQueryLogsSize)
	}
	env := Envelope{Kind: KindQueryLogs, Body: body}

	var lastErr error
	for attempt := 0; attempt <= b.cfg.LogsRetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.cfg.LogsRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		ok, err := b.handle.DialPeer(ctx, b.cfg.LogsCollector)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			lastErr = fmt.Errorf("worker: logs-collector %s unreachable", b.cfg.LogsCollector)
			continue
		}
		if err := b.handle.SendDirectMsg(b.cfg.LogsCollector, env); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("worker: failed to deliver logs after %d attempts: %w", b.cfg.LogsRetryMax+1, lastErr)
}
