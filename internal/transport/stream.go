package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/subsquid-network/p2p-transport/internal/codec"
)

// legacyRequestTimeout is the request/response round-trip timeout for the
// legacy unicast path.
const legacyRequestTimeout = 60 * time.Second

// wireLegacyProtocol registers the stream handler for the legacy
// request/response protocol tag. Each inbound stream carries exactly one
// framed request; it is read, surfaced as a requestEvent, and acked once
// the eventloop has delivered it (or failed to decode it).
func (t *Transport[T]) wireLegacyProtocol() {
	t.sub.Host.SetStreamHandler(t.legacy, func(s network.Stream) {
		defer s.Close()
		_ = s.SetDeadline(time.Now().Add(legacyRequestTimeout))

		payload, err := codec.ReadFramed(s)
		if err != nil {
			slog.Debug("legacy stream read failed", "peer", s.Conn().RemotePeer(), "err", err)
			return
		}

		acked := make(chan struct{})
		ev := requestEvent{
			Peer:    s.Conn().RemotePeer(),
			Payload: payload,
			Ack: func() {
				close(acked)
			},
		}
		select {
		case t.events <- ev:
		case <-time.After(legacyRequestTimeout):
			return
		}
		select {
		case <-acked:
		case <-time.After(legacyRequestTimeout):
			return
		}
		if err := codec.WriteAck(s); err != nil {
			slog.Debug("legacy stream ack write failed", "peer", s.Conn().RemotePeer(), "err", err)
		}
	})
}

// sendUnicast encodes payload and hands the actual stream I/O off to its
// own goroutine, mirroring lookupPeer/dialNow: opening a stream, writing
// the framed payload, and waiting for the ack can each take up to
// legacyRequestTimeout, and the eventloop goroutine must never block on
// that regardless of how unresponsive dst is. Failures are surfaced as
// OutboundFailure but never terminate the transport.
func (t *Transport[T]) sendUnicast(ctx context.Context, dst peer.ID, payload T) {
	data, err := t.cfg.Codec.Encode(payload)
	if err != nil {
		slog.Error("failed to encode outbound unicast", "peer", dst, "err", err)
		return
	}

	go t.sendUnicastBlocking(ctx, dst, data)
}

func (t *Transport[T]) sendUnicastBlocking(ctx context.Context, dst peer.ID, data []byte) {
	sctx, cancel := context.WithTimeout(ctx, legacyRequestTimeout)
	defer cancel()

	s, err := t.sub.Host.NewStream(sctx, dst, t.legacy)
	if err != nil {
		slog.Warn("outbound request failed", "err", &OutboundFailure{Peer: dst.String(), Err: err})
		return
	}
	defer s.Close()
	_ = s.SetDeadline(time.Now().Add(legacyRequestTimeout))

	if err := codec.WriteFramed(s, data); err != nil {
		slog.Warn("outbound request failed", "err", &OutboundFailure{Peer: dst.String(), Err: err})
		return
	}
	if err := codec.ReadAck(s); err != nil {
		slog.Warn("outbound request failed", "err", &OutboundFailure{Peer: dst.String(), Err: err})
	}
}
