package worker

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"

	"github.com/subsquid-network/p2p-transport/internal/substrate"
)

func newTestBehaviour(t *testing.T, scheduler, collector peer.ID) *Behaviour {
	t.Helper()
	gater := substrate.NewBlockListGater()
	cfg := Config{Scheduler: scheduler, LogsCollector: collector}
	cfg.setDefaults()
	return &Behaviour{
		cfg:                   cfg,
		gater:                 gater,
		events:                make(chan Event, 16),
		querySenders:          make(map[string]peer.ID),
		queryResponseChannels: make(map[string]network.Stream),
	}
}

func TestOnPongFromImpersonatorIsBlockedAndDropped(t *testing.T) {
	scheduler := test.RandPeerIDFatal(t)
	impostor := test.RandPeerIDFatal(t)
	b := newTestBehaviour(t, scheduler, test.RandPeerIDFatal(t))

	b.onPong(impostor, []byte("fake pong"))

	if !b.gater.IsBlocked(impostor) {
		t.Fatal("expected impersonating peer to be blocked")
	}
	select {
	case ev := <-b.events:
		t.Fatalf("expected no event delivered, got %+v", ev)
	default:
	}
}

func TestOnPongFromRealSchedulerIsDelivered(t *testing.T) {
	scheduler := test.RandPeerIDFatal(t)
	b := newTestBehaviour(t, scheduler, test.RandPeerIDFatal(t))

	b.onPong(scheduler, []byte("real pong"))

	select {
	case ev := <-b.events:
		if ev.Kind != EventPong || string(ev.PongPayload) != "real pong" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected pong event delivered")
	}
	if b.gater.IsBlocked(scheduler) {
		t.Fatal("real scheduler must not be blocked")
	}
}

func TestOnQueryDeduplicatesRepeatedID(t *testing.T) {
	b := newTestBehaviour(t, test.RandPeerIDFatal(t), test.RandPeerIDFatal(t))
	gateway := test.RandPeerIDFatal(t)

	body, err := gobEncode(Query{ID: "q1", Payload: []byte("first")})
	if err != nil {
		t.Fatal(err)
	}
	b.onQuery(gateway, body, nil)

	select {
	case ev := <-b.events:
		if ev.Kind != EventQuery || ev.QueryID != "q1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected query event for first delivery")
	}

	dupBody, err := gobEncode(Query{ID: "q1", Payload: []byte("duplicate")})
	if err != nil {
		t.Fatal(err)
	}
	b.onQuery(gateway, dupBody, nil)

	select {
	case ev := <-b.events:
		t.Fatalf("expected duplicate query id to be dropped, got %+v", ev)
	default:
	}
}

func TestOnLogsCollectedFromImpersonatorIsBlockedAndDropped(t *testing.T) {
	collector := test.RandPeerIDFatal(t)
	impostor := test.RandPeerIDFatal(t)
	b := newTestBehaviour(t, test.RandPeerIDFatal(t), collector)

	body, err := gobEncode(LogsCollected{LastSeqNo: map[peer.ID]uint64{"w1": 42}})
	if err != nil {
		t.Fatal(err)
	}
	b.onLogsCollected(impostor, Envelope{Body: body})

	if !b.gater.IsBlocked(impostor) {
		t.Fatal("expected impersonating peer to be blocked")
	}
	select {
	case ev := <-b.events:
		t.Fatalf("expected no event delivered, got %+v", ev)
	default:
	}
}

func TestOnLogsCollectedExtractsWatermark(t *testing.T) {
	collector := test.RandPeerIDFatal(t)
	b := newTestBehaviour(t, test.RandPeerIDFatal(t), collector)
	worker1 := test.RandPeerIDFatal(t)

	body, err := gobEncode(LogsCollected{LastSeqNo: map[peer.ID]uint64{worker1: 99}})
	if err != nil {
		t.Fatal(err)
	}
	b.onLogsCollected(collector, Envelope{Body: body})

	select {
	case ev := <-b.events:
		if ev.Kind != EventLogsCollected || ev.LastSeqNo[worker1] != 99 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected logs-collected event")
	}
}

func TestSendQueryResultRejectsUnknownQueryID(t *testing.T) {
	b := newTestBehaviour(t, test.RandPeerIDFatal(t), test.RandPeerIDFatal(t))
	if err := b.SendQueryResult("never-seen", []byte("x")); err == nil {
		t.Fatal("expected error for unknown query id")
	}
}

func TestPendingQueryCountTracksUnansweredQueries(t *testing.T) {
	b := newTestBehaviour(t, test.RandPeerIDFatal(t), test.RandPeerIDFatal(t))
	gateway := test.RandPeerIDFatal(t)

	if got := b.PendingQueryCount(); got != 0 {
		t.Fatalf("expected 0 pending queries initially, got %d", got)
	}

	body, err := gobEncode(Query{ID: "q1", Payload: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	b.onQuery(gateway, body, nil)
	<-b.events

	if got := b.PendingQueryCount(); got != 1 {
		t.Fatalf("expected 1 pending query after onQuery, got %d", got)
	}
}
