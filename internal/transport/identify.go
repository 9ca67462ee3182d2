package transport

import (
	"log/slog"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/peerstore"
	manet "github.com/multiformats/go-multiaddr/net"
)

// wireIdentify subscribes to identify completion events, filters
// listen_addrs down to publicly reachable ones, adds them to the DHT's
// address book (via the host peerstore the DHT shares), and reports the
// identify as a query-resolving event per §4.4.
func (t *Transport[T]) wireIdentify() {
	sub, err := t.sub.Host.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		slog.Error("failed to subscribe to identify events", "err", err)
		return
	}
	go func() {
		for e := range sub.Out() {
			ev, ok := e.(event.EvtPeerIdentificationCompleted)
			if !ok {
				continue
			}
			reachable := false
			for _, addr := range ev.ListenAddrs {
				if manet.IsPublicAddr(addr) {
					t.sub.Host.Peerstore().AddAddr(ev.Peer, addr, peerstore.RecentlyConnectedAddrTTL)
					reachable = true
				}
			}
			select {
			case t.events <- identifyEvent{Peer: ev.Peer, ReachableAddr: reachable}:
			default:
			}
		}
	}()
}
