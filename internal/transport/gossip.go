package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/subsquid-network/p2p-transport/internal/codec"
)

// gossipTopicHandle owns one subscribed topic's pubsub objects and the
// goroutine pumping pubsub.Subscription.Next into the eventloop's request
// channel (indirectly, via the registered validator).
type gossipTopicHandle struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	cancel context.CancelFunc
}

// topicHash is the sha256 hex digest of the plaintext topic name, used
// as the map key distinguishing "wire topic string" from "internal
// lookup key" per the wire format note in the external interfaces.
func topicHash(topic string) string {
	sum := sha256.Sum256([]byte(topic))
	return hex.EncodeToString(sum[:])
}

// MsgIDFn is installed on the gossipsub router at construction time and
// must be pure/deterministic across all peers; it is exported so callers
// building the substrate pass the same function this package validates
// messages against.
func MsgIDFn(m *pb.Message) string {
	var source string
	anonymous := true
	if m.From != nil {
		source = encodeBase58(m.From)
		anonymous = false
	}
	var seqNo uint64
	hasSeq := len(m.Seqno) > 0
	if hasSeq {
		seqNo = seqnoToUint64(m.Seqno)
	}
	return codec.GossipMessageID(source, anonymous, seqNo, hasSeq)
}

func (t *Transport[T]) subscribeTopic(ctx context.Context, topicName string, allowUnordered bool) {
	hash := topicHash(topicName)
	if _, already := t.topics.get(hash); already {
		return
	}

	topic, err := t.sub.PubSub.Join(topicName)
	if err != nil {
		slog.Error("failed to join gossip topic", "topic", topicName, "err", err)
		return
	}

	if err := t.sub.PubSub.RegisterTopicValidator(topicName, t.makeValidator(hash)); err != nil {
		slog.Error("failed to register gossip validator", "topic", topicName, "err", err)
		_ = topic.Close()
		return
	}

	subscription, err := topic.Subscribe()
	if err != nil {
		slog.Error("failed to subscribe gossip topic", "topic", topicName, "err", err)
		_ = t.sub.PubSub.UnregisterTopicValidator(topicName)
		_ = topic.Close()
		return
	}

	readCtx, cancel := context.WithCancel(ctx)
	t.topics.set(hash, topicName, allowUnordered)
	t.cfg.Recorder.SubscribedTopicsInc()
	t.gossipTopics[hash] = &gossipTopicHandle{topic: topic, sub: subscription, cancel: cancel}

	go func() {
		for {
			_, err := subscription.Next(readCtx)
			if err != nil {
				return
			}
			// Acceptance and delivery already happened inside the
			// validator callback (makeValidator); Next only needs to
			// keep draining so the subscription doesn't stall.
		}
	}()
}

func (t *Transport[T]) unsubscribeTopic(topicName string) {
	hash := topicHash(topicName)
	if _, ok := t.topics.get(hash); !ok {
		return
	}
	t.topics.remove(hash)
	t.cfg.Recorder.SubscribedTopicsDec()
	if h, ok := t.gossipTopics[hash]; ok {
		h.cancel()
		h.sub.Cancel()
		_ = t.sub.PubSub.UnregisterTopicValidator(topicName)
		_ = h.topic.Close()
		delete(t.gossipTopics, hash)
	}
}

// makeValidator returns a pubsub.ValidatorEx that hands the message to
// the eventloop and blocks until it replies with Accept or Reject,
// preserving single-owner access to sequence-number state.
func (t *Transport[T]) makeValidator(hash string) pubsub.ValidatorEx {
	return func(ctx context.Context, _ peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
		reply := make(chan pubsub.ValidationResult, 1)
		ev := gossipMsgEvent{
			TopicHash: hash,
			Data:      msg.Data,
			Reply:     reply,
		}
		if msg.Message.From != nil {
			if p, err := peerIDFromBytes(msg.Message.From); err == nil {
				ev.Source = p
				ev.HasSource = true
			}
		}
		if len(msg.Message.Seqno) > 0 {
			ev.SeqNo = seqnoToUint64(msg.Message.Seqno)
			ev.HasSeqNo = true
		}

		select {
		case t.events <- ev:
		case <-ctx.Done():
			return pubsub.ValidationReject
		}
		select {
		case r := <-reply:
			return r
		case <-ctx.Done():
			return pubsub.ValidationReject
		}
	}
}

func (t *Transport[T]) publish(ctx context.Context, topicName string, payload T) {
	hash := topicHash(topicName)
	h, ok := t.gossipTopics[hash]
	if !ok {
		slog.Warn("publish to unsubscribed topic, dropping", "topic", topicName)
		return
	}
	data, err := t.cfg.Codec.Encode(payload)
	if err != nil {
		slog.Error("failed to encode outbound broadcast", "topic", topicName, "err", err)
		return
	}
	if err := h.topic.Publish(ctx, data); err != nil {
		slog.Warn("gossip publish failed", "topic", topicName, "err", err)
	}
}
