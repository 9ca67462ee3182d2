package transport

import (
	"testing"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/test"
	"pgregory.net/rapid"

	"github.com/subsquid-network/p2p-transport/internal/metrics"
)

func newTestTransport(t *testing.T) *Transport[string] {
	t.Helper()
	tr := &Transport[string]{
		cfg: Config[string]{
			Codec: Codec[string]{
				Encode: func(s string) ([]byte, error) { return []byte(s), nil },
				Decode: func(b []byte) (string, error) { return string(b), nil },
			},
			Recorder: metrics.Noop{},
		},
		inbound: make(chan Inbound[string], 16),
		topics:  newSubscribedTopics(),
		seqnos:  newSequenceNumbers(),
	}
	return tr
}

func TestOnGossipMessageRejectsUnknownTopic(t *testing.T) {
	tr := newTestTransport(t)
	reply := make(chan pubsub.ValidationResult, 1)
	tr.onGossipMessage(gossipMsgEvent{
		TopicHash: "nonexistent",
		Source:    test.RandPeerIDFatal(t),
		HasSource: true,
		SeqNo:     1,
		HasSeqNo:  true,
		Data:      []byte("hi"),
		Reply:     reply,
	})
	if got := <-reply; got != pubsub.ValidationReject {
		t.Errorf("expected reject for unknown topic, got %v", got)
	}
}

func TestOnGossipMessageRejectsMissingSource(t *testing.T) {
	tr := newTestTransport(t)
	tr.topics.set("h", "pings", false)
	reply := make(chan pubsub.ValidationResult, 1)
	tr.onGossipMessage(gossipMsgEvent{TopicHash: "h", HasSource: false, Data: []byte("x"), Reply: reply})
	if got := <-reply; got != pubsub.ValidationReject {
		t.Errorf("expected reject for missing source, got %v", got)
	}
}

func TestOnGossipMessageEnforcesStrictOrdering(t *testing.T) {
	tr := newTestTransport(t)
	tr.topics.set("h", "pings", false)
	src := test.RandPeerIDFatal(t)

	accept := func(seq uint64) pubsub.ValidationResult {
		reply := make(chan pubsub.ValidationResult, 1)
		tr.onGossipMessage(gossipMsgEvent{
			TopicHash: "h", Source: src, HasSource: true,
			SeqNo: seq, HasSeqNo: true, Data: []byte("x"), Reply: reply,
		})
		return <-reply
	}

	if got := accept(100); got != pubsub.ValidationAccept {
		t.Fatalf("first message with seq 100 should be accepted, got %v", got)
	}
	if got := accept(101); got != pubsub.ValidationAccept {
		t.Fatalf("seq 101 after 100 should be accepted, got %v", got)
	}
	if got := accept(100); got != pubsub.ValidationReject {
		t.Fatalf("republished seq 100 should be rejected as old, got %v", got)
	}
	if got := accept(101); got != pubsub.ValidationReject {
		t.Fatalf("seq 101 repeated should be rejected as old, got %v", got)
	}
}

func TestOnGossipMessageRejectsFutureSequence(t *testing.T) {
	tr := newTestTransport(t)
	tr.topics.set("h", "pings", false)
	reply := make(chan pubsub.ValidationResult, 1)
	tr.onGossipMessage(gossipMsgEvent{
		TopicHash: "h", Source: test.RandPeerIDFatal(t), HasSource: true,
		SeqNo: now() + uint64(1e18), HasSeqNo: true, Data: []byte("x"), Reply: reply,
	})
	if got := <-reply; got != pubsub.ValidationReject {
		t.Errorf("expected reject for future sequence number, got %v", got)
	}
}

func TestOnGossipMessageAllowUnorderedSkipsSequenceCheck(t *testing.T) {
	tr := newTestTransport(t)
	tr.topics.set("h", "chatter", true)
	src := test.RandPeerIDFatal(t)

	for _, seq := range []uint64{5, 5, 1} {
		reply := make(chan pubsub.ValidationResult, 1)
		tr.onGossipMessage(gossipMsgEvent{
			TopicHash: "h", Source: src, HasSource: true,
			SeqNo: seq, HasSeqNo: true, Data: []byte("x"), Reply: reply,
		})
		if got := <-reply; got != pubsub.ValidationAccept {
			t.Errorf("allow_unordered topic should accept seq %d, got %v", seq, got)
		}
	}
}

func TestOnGossipMessageDeliversAcceptedPayload(t *testing.T) {
	tr := newTestTransport(t)
	tr.topics.set("h", "pings", false)
	src := test.RandPeerIDFatal(t)
	reply := make(chan pubsub.ValidationResult, 1)
	tr.onGossipMessage(gossipMsgEvent{
		TopicHash: "h", Source: src, HasSource: true,
		SeqNo: 1, HasSeqNo: true, Data: []byte("payload"), Reply: reply,
	})
	<-reply

	select {
	case in := <-tr.inbound:
		if in.Payload != "payload" || in.Topic != "pings" || in.Source != src {
			t.Errorf("unexpected delivery: %+v", in)
		}
	default:
		t.Fatal("expected a delivered inbound message")
	}
}

func TestOrderingPropertyAcrossRandomSequences(t *testing.T) {
	fixedTestPeer := test.RandPeerIDFatal(t)
	rapid.Check(t, func(rt *rapid.T) {
		tr := &Transport[string]{
			cfg: Config[string]{
				Codec:    Codec[string]{Encode: func(s string) ([]byte, error) { return []byte(s), nil }, Decode: func(b []byte) (string, error) { return string(b), nil }},
				Recorder: metrics.Noop{},
			},
			inbound: make(chan Inbound[string], 4096),
			topics:  newSubscribedTopics(),
			seqnos:  newSequenceNumbers(),
		}
		tr.topics.set("h", "t", false)
		seqs := rapid.SliceOfN(rapid.Uint64Range(0, 1000), 1, 30).Draw(rt, "seqs")

		var lastAccepted uint64
		hasAccepted := false
		for _, seq := range seqs {
			reply := make(chan pubsub.ValidationResult, 1)
			tr.onGossipMessage(gossipMsgEvent{
				TopicHash: "h", Source: fixedTestPeer, HasSource: true,
				SeqNo: seq, HasSeqNo: true, Data: []byte("x"), Reply: reply,
			})
			result := <-reply
			if result == pubsub.ValidationAccept {
				if hasAccepted && seq <= lastAccepted {
					rt.Fatalf("accepted non-increasing sequence: last=%d seq=%d", lastAccepted, seq)
				}
				lastAccepted = seq
				hasAccepted = true
			}
		}
	})
}
