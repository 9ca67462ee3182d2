// Package cli parses the flags shared by every binary that stands up a
// transport: listen/public addresses, boot nodes, key file, and whether
// DHT bootstrapping is enabled.
package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/subsquid-network/p2p-transport/internal/substrate"
)

// TransportArgs holds the flags common to every role binary. Call
// Register to bind flags onto a FlagSet, fs.Parse to read argv, then
// Finish to populate the structured fields below from the raw strings
// flag.Parse captured.
type TransportArgs struct {
	ListenAddrs  []string
	PublicAddrs  []string
	KeyFile      string
	Bootstrap    bool
	ForcePrivate bool
	BootNodes    []substrate.BootNode

	listenRaw string
	publicRaw string
	bootRaw   string
}

// Register binds the transport flags onto fs, returning a pointer whose
// fields are populated once fs.Parse returns.
func Register(fs *flag.FlagSet) *TransportArgs {
	a := &TransportArgs{}

	fs.StringVar(&a.listenRaw, "listen", "/ip4/0.0.0.0/tcp/0,/ip4/0.0.0.0/udp/0/quic-v1", "comma-separated listen multiaddrs")
	fs.StringVar(&a.publicRaw, "public-addr", "", "comma-separated multiaddrs to advertise in addition to discovered ones")
	fs.StringVar(&a.bootRaw, "boot-nodes", "", "comma-separated peer-id@multiaddr boot nodes")
	fs.StringVar(&a.KeyFile, "key", "identity.key", "path to the node's private key file (created if missing)")
	fs.BoolVar(&a.Bootstrap, "bootstrap", true, "issue periodic DHT bootstrap rounds")
	fs.BoolVar(&a.ForcePrivate, "force-private", false, "force autonat to classify this node as privately reachable")

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Boot node format: -boot-nodes <peer-id>@<multiaddr>[,<peer-id>@<multiaddr>...]")
		fs.PrintDefaults()
	}
	return a
}

// Finish splits the comma-separated flag values captured during Register
// into their structured forms. Call it immediately after fs.Parse.
func (a *TransportArgs) Finish() error {
	a.ListenAddrs = splitNonEmpty(a.listenRaw)
	a.PublicAddrs = splitNonEmpty(a.publicRaw)

	for _, entry := range splitNonEmpty(a.bootRaw) {
		bn, err := ParseBootNode(entry)
		if err != nil {
			return fmt.Errorf("cli: %w", err)
		}
		a.BootNodes = append(a.BootNodes, bn)
	}
	return nil
}

// ParseAnnounceAddrs parses the comma-split PublicAddrs into multiaddrs
// suitable for substrate.Config.AnnounceAddrs.
func (a *TransportArgs) ParseAnnounceAddrs() ([]ma.Multiaddr, error) {
	if len(a.PublicAddrs) == 0 {
		return nil, nil
	}
	addrs := make([]ma.Multiaddr, 0, len(a.PublicAddrs))
	for _, raw := range a.PublicAddrs {
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			return nil, fmt.Errorf("cli: invalid public address %q: %w", raw, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// ParseBootNode parses a single "peer-id@multiaddr" entry. The
// multiaddr must not itself embed a /p2p/<id> component; the peer id is
// taken from the prefix and both are validated independently.
func ParseBootNode(entry string) (substrate.BootNode, error) {
	parts := strings.SplitN(entry, "@", 2)
	if len(parts) != 2 {
		return substrate.BootNode{}, fmt.Errorf("boot node %q: expected peer-id@multiaddr", entry)
	}
	id, err := peer.Decode(parts[0])
	if err != nil {
		return substrate.BootNode{}, fmt.Errorf("boot node %q: invalid peer id: %w", entry, err)
	}
	addr, err := ma.NewMultiaddr(parts[1])
	if err != nil {
		return substrate.BootNode{}, fmt.Errorf("boot node %q: invalid multiaddr: %w", entry, err)
	}
	return substrate.BootNode{ID: id, Addrs: []ma.Multiaddr{addr}}, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
