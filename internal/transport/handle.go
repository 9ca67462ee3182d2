package transport

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// dialTimeout is the end-to-end timeout seen by a DialPeer caller.
const dialTimeout = 60 * time.Second

// Handle is a cloneable (by value) reference to a running Transport. All
// methods are safe to call from any number of concurrent goroutines; they
// only ever publish to the transport's bounded command channels or
// oneshot waiters, never touch swarm state directly.
type Handle[T any] struct {
	t *Transport[T]
}

// Inbound returns the channel of delivered messages.
func (h Handle[T]) Inbound() <-chan Inbound[T] {
	return h.t.Inbound()
}

// TrySendMessage enqueues an outbound message without blocking, returning
// ErrQueueFull if the outbound channel has no free capacity.
func (h Handle[T]) TrySendMessage(msg Message[T]) error {
	select {
	case h.t.outbound <- msg:
		h.t.cfg.Recorder.OutboundMsgQueueSizeInc()
		return nil
	default:
		return ErrQueueFull
	}
}

// SendDirectMsg is a convenience wrapper building a unicast Message.
func (h Handle[T]) SendDirectMsg(to peer.ID, payload T) error {
	return h.TrySendMessage(Unicast(to, payload))
}

// BroadcastMsg is a convenience wrapper building a broadcast Message.
func (h Handle[T]) BroadcastMsg(topic string, payload T) error {
	return h.TrySendMessage(Broadcast(topic, payload))
}

// TrySubscribe enqueues a subscribe/unsubscribe command without blocking.
func (h Handle[T]) TrySubscribe(sub Subscription) error {
	select {
	case h.t.subs <- sub:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe subscribes to topic; allowUnordered disables the monotonic
// sequence-number check for it.
func (h Handle[T]) Subscribe(topic string, allowUnordered bool) error {
	return h.TrySubscribe(Subscription{Topic: topic, Subscribed: true, AllowUnordered: allowUnordered})
}

// ToggleSubscription subscribes to topic when subscribed is true and
// unsubscribes it otherwise; a subscription made this way keeps the
// monotonic sequence-number check enabled.
func (h Handle[T]) ToggleSubscription(topic string, subscribed bool) error {
	return h.TrySubscribe(Subscription{Topic: topic, Subscribed: subscribed})
}

// DialPeer asks the transport to ensure a connection to p, blocking the
// caller (not the eventloop) until resolved or dialTimeout elapses.
func (h Handle[T]) DialPeer(ctx context.Context, p peer.ID) (bool, error) {
	result := make(chan bool, 1)
	cmd := DialCommand{Peer: p, Result: result}

	select {
	case h.t.dials <- cmd:
		h.t.cfg.Recorder.DialQueueSizeInc()
	default:
		return false, ErrQueueFull
	}

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()
	select {
	case ok := <-result:
		return ok, nil
	case <-timer.C:
		return false, ErrDialTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close shuts down the owning transport; once the last handle is no
// longer needed, callers should call Close exactly once.
func (h Handle[T]) Close() {
	h.t.Close()
}
