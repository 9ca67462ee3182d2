package transport

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"
	"pgregory.net/rapid"
)

func TestActiveConnectionsEvictsOldestOverCap(t *testing.T) {
	ac := newActiveConnections()
	p := test.RandPeerIDFatal(t)

	ac.push(p, 1, 2)
	ac.push(p, 2, 2)
	evicted := ac.push(p, 3, 2)

	if len(evicted) != 1 || evicted[0] != 1 {
		t.Fatalf("expected ConnID 1 evicted, got %v", evicted)
	}
	if ac.count(p) != 2 {
		t.Fatalf("expected 2 active connections, got %d", ac.count(p))
	}
}

func TestActiveConnectionsPropertyNeverExceedsCap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ac := newActiveConnections()
		p := peer.ID("fixed-test-peer")
		maxConns := rapid.IntRange(1, 5).Draw(rt, "maxConns")
		n := rapid.IntRange(0, 50).Draw(rt, "n")
		for i := 0; i < n; i++ {
			ac.push(p, ConnID(i), maxConns)
			if ac.count(p) > maxConns {
				rt.Fatalf("active connections %d exceeds cap %d", ac.count(p), maxConns)
			}
		}
	})
}

func TestPendingMessagesTakeClearsEntry(t *testing.T) {
	pm := newPendingMessages[string]()
	p := test.RandPeerIDFatal(t)
	pm.add(p, "a")
	pm.add(p, "b")

	msgs, ok := pm.take(p)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 buffered messages, got %v, ok=%v", msgs, ok)
	}
	if _, ok := pm.take(p); ok {
		t.Fatal("take should clear the entry")
	}
}

func TestOngoingQueriesBijection(t *testing.T) {
	oq := newOngoingQueries()
	p := test.RandPeerIDFatal(t)

	if oq.has(p) {
		t.Fatal("fresh ongoingQueries should report no query for any peer")
	}
	oq.start(p, func() {})
	if !oq.has(p) {
		t.Fatal("expected query registered for peer")
	}
	oq.finish(p)
	if oq.has(p) {
		t.Fatal("expected query cleared after finish")
	}
}

func TestSequenceNumbersMonotonic(t *testing.T) {
	sn := newSequenceNumbers()
	p := test.RandPeerIDFatal(t)

	if _, ok := sn.lastSeen("topic-hash", p); ok {
		t.Fatal("fresh sequenceNumbers should have no entry")
	}
	sn.record("topic-hash", p, 100)
	last, ok := sn.lastSeen("topic-hash", p)
	if !ok || last != 100 {
		t.Fatalf("expected last=100, got %d ok=%v", last, ok)
	}
	sn.record("topic-hash", p, 101)
	last, _ = sn.lastSeen("topic-hash", p)
	if last != 101 {
		t.Fatalf("expected last=101 after update, got %d", last)
	}
}
