package substrate

import (
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// BlockListGater implements libp2p's ConnectionGater interface as a deny
// list rather than an allow list: every peer is accepted until explicitly
// blocked. This is the mechanism role behaviors use to cut off a peer
// caught impersonating a reserved role (scheduler, logs-collector):
// outbound dialing is always permitted (required for DHT and relay
// traffic), only inbound acceptance is gated.
type BlockListGater struct {
	mu      sync.RWMutex
	blocked map[peer.ID]struct{}
}

// NewBlockListGater returns an empty gater.
func NewBlockListGater() *BlockListGater {
	return &BlockListGater{blocked: make(map[peer.ID]struct{})}
}

// Block adds p to the deny list. Already-open connections to p are not
// closed by the gater itself; callers that want an immediate disconnect
// must close the connection separately.
func (g *BlockListGater) Block(p peer.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, already := g.blocked[p]; !already {
		g.blocked[p] = struct{}{}
		slog.Warn("peer blocked", "peer", p)
	}
}

// IsBlocked reports whether p is currently on the deny list.
func (g *BlockListGater) IsBlocked(p peer.ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, blocked := g.blocked[p]
	return blocked
}

func (g *BlockListGater) InterceptPeerDial(peer.ID) bool { return true }

func (g *BlockListGater) InterceptAddrDial(peer.ID, multiaddr.Multiaddr) bool { return true }

func (g *BlockListGater) InterceptAccept(network.ConnMultiaddrs) bool { return true }

func (g *BlockListGater) InterceptSecured(dir network.Direction, p peer.ID, _ network.ConnMultiaddrs) bool {
	if dir != network.DirInbound {
		return true
	}
	return !g.IsBlocked(p)
}

func (g *BlockListGater) InterceptUpgraded(network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
