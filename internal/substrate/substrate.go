// Package substrate builds the composite libp2p swarm that the transport
// eventloop multiplexes: peer identification, Kademlia DHT, circuit relay
// client, hole punching, the legacy request/response protocol, gossip
// pub/sub, ping, and NAT status detection. It owns no application state;
// callers poll its Host/DHT/PubSub directly from a single goroutine.
package substrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/routing"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/sync/errgroup"
)

// IdentifyProtocol is the fixed identify version string every node on the
// overlay advertises.
const IdentifyProtocol = "/subsquid/0.0.1"

// LegacyProtocol is the request/response protocol tag used by the generic
// transport's unicast path.
const LegacyProtocol = "/subsquid-worker/0.0.1"

// BootstrapInterval is how often Kademlia bootstrap is re-issued while
// enabled.
const BootstrapInterval = 300 * time.Second

// MaxConnsPerPeer bounds the number of simultaneously established
// connections kept open to any one peer; excess connections are closed
// oldest-first by the transport eventloop.
const MaxConnsPerPeer = 2

// IdleConnTimeout is the idle connection timeout value for the swarm. New
// does not apply it to the host.
const IdleConnTimeout = 120 * time.Second

// defaultMTUDiscoveryMax is used when MTU_DISCOVERY_MAX is unset or invalid.
const defaultMTUDiscoveryMax = 1452

// MTUDiscoveryMax reads the MTU_DISCOVERY_MAX environment variable,
// falling back to defaultMTUDiscoveryMax on absence or parse failure.
func MTUDiscoveryMax() uint16 {
	v := os.Getenv("MTU_DISCOVERY_MAX")
	if v == "" {
		return defaultMTUDiscoveryMax
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return defaultMTUDiscoveryMax
	}
	return uint16(n)
}

// BootNode pairs a peer identity with the multiaddress used to seed
// discovery.
type BootNode struct {
	ID    peer.ID
	Addrs []ma.Multiaddr
}

// Config configures the composite swarm build.
type Config struct {
	PrivKeyOpt    libp2p.Option // libp2p.Identity(...), required
	ListenAddrs   []string
	AnnounceAddrs []ma.Multiaddr // advertised in addition to auto-discovered addrs
	RelayAddrs    []ma.Multiaddr // static relays used for AutoRelay
	ForcePrivate  bool
	BootNodes     []BootNode
	Gater         *BlockListGater // optional, nil-safe
}

// Substrate is the running composite swarm: host, DHT, and pub/sub router,
// plus the handful of sub-protocols the transport eventloop needs direct
// access to.
type Substrate struct {
	Host   host.Host
	DHT    *dht.IpfsDHT
	PubSub *pubsub.PubSub

	cancel context.CancelFunc
}

// New builds the libp2p host with every required sub-behavior wired in,
// starts the DHT with its default (automatic client/server) mode, and
// connects gossipsub on top. BootNodes
// are dialed (errors logged, not fatal: a subset of unreachable boot
// nodes is tolerated) and, when len(BootNodes) > 0, used to seed the DHT
// routing table.
func New(ctx context.Context, cfg Config, msgIDFn pubsub.MsgIdFunction) (*Substrate, error) {
	if cfg.PrivKeyOpt == nil {
		return nil, fmt.Errorf("substrate: Config.PrivKeyOpt is required")
	}

	sctx, cancel := context.WithCancel(ctx)

	var kdht *dht.IpfsDHT
	opts := []libp2p.Option{
		cfg.PrivKeyOpt,
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Transport(ws.New),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
		libp2p.UserAgent("subsquid-p2p-transport"),
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			var err error
			kdht, err = dht.New(sctx, h)
			return kdht, err
		}),
	}
	if len(cfg.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	}
	if len(cfg.AnnounceAddrs) > 0 {
		announce := cfg.AnnounceAddrs
		opts = append(opts, libp2p.AddrsFactory(func(discovered []ma.Multiaddr) []ma.Multiaddr {
			return append(append([]ma.Multiaddr{}, discovered...), announce...)
		}))
	}
	if len(cfg.RelayAddrs) > 0 {
		infos, err := relayAddrInfos(cfg.RelayAddrs)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("substrate: %w", err)
		}
		opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(infos))
	}
	if cfg.ForcePrivate {
		opts = append(opts, libp2p.ForceReachabilityPrivate())
	}
	if cfg.Gater != nil {
		opts = append(opts, libp2p.ConnectionGater(cfg.Gater))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("substrate: build host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(sctx, h,
		pubsub.WithMessageIdFn(msgIDFn),
		pubsub.WithValidateQueueSize(256),
	)
	if err != nil {
		cancel()
		_ = h.Close()
		return nil, fmt.Errorf("substrate: build pubsub: %w", err)
	}

	s := &Substrate{Host: h, DHT: kdht, PubSub: ps, cancel: cancel}

	// Boot nodes are dialed concurrently: a handful of unreachable ones
	// shouldn't make every reachable one wait its turn behind a timeout.
	var eg errgroup.Group
	for _, bn := range cfg.BootNodes {
		bn := bn
		h.Peerstore().AddAddrs(bn.ID, bn.Addrs, peerstore.PermanentAddrTTL)
		eg.Go(func() error {
			dialCtx, dialCancel := context.WithTimeout(sctx, 30*time.Second)
			defer dialCancel()
			if dialErr := h.Connect(dialCtx, peer.AddrInfo{ID: bn.ID, Addrs: bn.Addrs}); dialErr != nil {
				logBootDialFailure(bn.ID, dialErr)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return s, nil
}

// Bootstrap issues one Kademlia bootstrap round. Callers re-invoke this on
// BootstrapInterval while bootstrapping is enabled.
func (s *Substrate) Bootstrap(ctx context.Context) error {
	if s.DHT == nil {
		return nil
	}
	return s.DHT.Bootstrap(ctx)
}

// Close tears down the host and any substrate-owned background work.
func (s *Substrate) Close() error {
	s.cancel()
	return s.Host.Close()
}

// Connectedness reports whether the host currently has a live connection
// to the given peer.
func (s *Substrate) Connectedness(p peer.ID) network.Connectedness {
	return s.Host.Network().Connectedness(p)
}

// ReachabilityUpdates subscribes to autonat's reachability classification
// and returns a channel of grades; closing ctx unsubscribes.
func (s *Substrate) ReachabilityUpdates(ctx context.Context) (<-chan ReachabilityGrade, error) {
	sub, err := s.Host.EventBus().Subscribe(new(event.EvtLocalReachabilityChanged))
	if err != nil {
		return nil, fmt.Errorf("substrate: subscribe reachability: %w", err)
	}
	out := make(chan ReachabilityGrade, 1)
	go func() {
		defer sub.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.Out():
				if !ok {
					return
				}
				ev := e.(event.EvtLocalReachabilityChanged)
				select {
				case out <- ComputeReachabilityGrade(ev.Reachability):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func logBootDialFailure(id peer.ID, err error) {
	slog.Warn("boot node dial failed", "peer", id, "err", err)
}

func relayAddrInfos(addrs []ma.Multiaddr) ([]peer.AddrInfo, error) {
	seen := make(map[peer.ID]int)
	var infos []peer.AddrInfo
	for _, addr := range addrs {
		ai, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid relay addr %s: %w", addr, err)
		}
		if i, ok := seen[ai.ID]; ok {
			infos[i].Addrs = append(infos[i].Addrs, ai.Addrs...)
			continue
		}
		seen[ai.ID] = len(infos)
		infos = append(infos, *ai)
	}
	return infos, nil
}
