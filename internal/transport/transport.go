package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/subsquid-network/p2p-transport/internal/metrics"
	"github.com/subsquid-network/p2p-transport/internal/substrate"
	"github.com/subsquid-network/p2p-transport/internal/taskmanager"
)

// Codec converts an application payload to and from wire bytes. The
// transport treats T as opaque; role behaviors supply the marshaling.
type Codec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// Config configures one Transport instance.
type Config[T any] struct {
	Codec Codec[T]

	// BootstrapEnabled issues a DHT bootstrap every substrate.BootstrapInterval.
	BootstrapEnabled bool

	InboundBufferSize      int
	OutboundBufferSize     int
	SubscriptionBufferSize int
	DialBufferSize         int
	ShutdownTimeout        time.Duration

	Recorder metrics.Recorder // nil-safe
}

func (c *Config[T]) setDefaults() {
	if c.InboundBufferSize <= 0 {
		c.InboundBufferSize = 256
	}
	if c.OutboundBufferSize <= 0 {
		c.OutboundBufferSize = 256
	}
	if c.SubscriptionBufferSize <= 0 {
		c.SubscriptionBufferSize = 32
	}
	if c.DialBufferSize <= 0 {
		c.DialBufferSize = 32
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = taskmanager.DefaultShutdownTimeout
	}
	if c.Recorder == nil {
		c.Recorder = metrics.Noop{}
	}
}

// Transport owns a substrate swarm exclusively and runs the single
// multiplexing eventloop described by the generic transport component.
// It is constructed via New and driven by Start, which runs the eventloop;
// use the Handle Start returns to submit commands from any goroutine.
type Transport[T any] struct {
	sub    *substrate.Substrate
	cfg    Config[T]
	self   peer.ID
	legacy protocol.ID

	inbound  chan Inbound[T]
	outbound chan Message[T]
	subs     chan Subscription
	dials    chan DialCommand
	events   chan swarmEvent

	queries  *ongoingQueries
	dials_   *dialWaiters
	pending  *pendingMessages[T]
	topics   *subscribedTopics
	seqnos   *sequenceNumbers
	conns    *activeConnections
	connSeq  uint64
	connSeqMu sync.Mutex

	gossipTopics map[string]*gossipTopicHandle

	connIDs   map[network.Conn]ConnID
	connsByID map[ConnID]network.Conn
	connIDsMu sync.Mutex

	tm *taskmanager.TaskManager
}

// New constructs a Transport bound to sub. Callers must call Start exactly
// once to run the eventloop and obtain a Handle.
func New[T any](sub *substrate.Substrate, cfg Config[T]) *Transport[T] {
	cfg.setDefaults()
	return &Transport[T]{
		sub:          sub,
		cfg:          cfg,
		self:         sub.Host.ID(),
		legacy:       protocol.ID(substrate.LegacyProtocol),
		inbound:      make(chan Inbound[T], cfg.InboundBufferSize),
		outbound:     make(chan Message[T], cfg.OutboundBufferSize),
		subs:         make(chan Subscription, cfg.SubscriptionBufferSize),
		dials:        make(chan DialCommand, cfg.DialBufferSize),
		events:       make(chan swarmEvent, 256),
		queries:      newOngoingQueries(),
		dials_:       newDialWaiters(),
		pending:      newPendingMessages[T](),
		topics:       newSubscribedTopics(),
		seqnos:       newSequenceNumbers(),
		conns:        newActiveConnections(),
		gossipTopics: make(map[string]*gossipTopicHandle),
	}
}

// Start wires the substrate event sources (connection notifications,
// identify, legacy protocol stream handler) and spawns the eventloop
// goroutine under a TaskManager, returning a Handle. The Transport is
// unusable until Start is called.
func (t *Transport[T]) Start() *Handle[T] {
	t.wireNotifiee()
	t.wireIdentify()
	t.wireLegacyProtocol()

	t.tm = taskmanager.New(t.cfg.ShutdownTimeout, t.run)
	return &Handle[T]{t: t}
}

// Close triggers transport shutdown and waits up to the configured
// timeout for the eventloop to exit.
func (t *Transport[T]) Close() {
	if t.tm != nil {
		t.tm.Close()
	}
}

// Inbound returns the channel of delivered messages. Consumers must keep
// reading it; a full channel causes new gossip deliveries to be dropped
// with a warning (never blocks the eventloop).
func (t *Transport[T]) Inbound() <-chan Inbound[T] {
	return t.inbound
}

func (t *Transport[T]) nextConnID() ConnID {
	t.connSeqMu.Lock()
	defer t.connSeqMu.Unlock()
	t.connSeq++
	return ConnID(t.connSeq)
}

// run is the single multiplexing eventloop. It must never perform a
// blocking operation itself; anything that can block (DHT lookups,
// dials) is offloaded to its own goroutine that reports back through
// t.events.
func (t *Transport[T]) run(ctx context.Context) {
	var bootstrapTicker *time.Ticker
	if t.cfg.BootstrapEnabled {
		bootstrapTicker = time.NewTicker(substrate.BootstrapInterval)
		defer bootstrapTicker.Stop()
	}
	var bootstrapC <-chan time.Time
	if bootstrapTicker != nil {
		bootstrapC = bootstrapTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-bootstrapC:
			if err := t.sub.Bootstrap(ctx); err != nil {
				slog.Error("dht bootstrap failed", "err", err)
				return
			}

		case ev := <-t.events:
			t.handleSwarmEvent(ctx, ev)

		case msg := <-t.outbound:
			t.cfg.Recorder.OutboundMsgQueueSizeDec()
			t.handleOutbound(ctx, msg)

		case sub := <-t.subs:
			t.handleSubscription(ctx, sub)

		case dial := <-t.dials:
			t.cfg.Recorder.DialQueueSizeDec()
			t.handleDialCommand(ctx, dial)
		}
	}
}
