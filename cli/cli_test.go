package cli

import (
	"flag"
	"testing"
)

func TestRegisterAndFinishParsesBootNodes(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	a := Register(fs)

	peerID := "12D3KooWHBz3qfyC9zoXipPL3cA6eGGn6C9gdaDm8hPZEwPXKf7P"
	err := fs.Parse([]string{
		"-listen=/ip4/0.0.0.0/tcp/9000",
		"-boot-nodes=" + peerID + "@/ip4/1.2.3.4/tcp/9000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Finish(); err != nil {
		t.Fatal(err)
	}

	if len(a.ListenAddrs) != 1 || a.ListenAddrs[0] != "/ip4/0.0.0.0/tcp/9000" {
		t.Fatalf("unexpected listen addrs: %v", a.ListenAddrs)
	}
	if len(a.BootNodes) != 1 || a.BootNodes[0].ID.String() != peerID {
		t.Fatalf("unexpected boot nodes: %+v", a.BootNodes)
	}
}

func TestParseBootNodeRejectsMissingAt(t *testing.T) {
	if _, err := ParseBootNode("not-a-valid-entry"); err == nil {
		t.Fatal("expected error for entry without @")
	}
}

func TestParseBootNodeRejectsInvalidPeerID(t *testing.T) {
	if _, err := ParseBootNode("not-a-peer-id@/ip4/1.2.3.4/tcp/9000"); err == nil {
		t.Fatal("expected error for invalid peer id")
	}
}

func TestParseAnnounceAddrsParsesEachEntry(t *testing.T) {
	a := &TransportArgs{PublicAddrs: []string{"/ip4/5.6.7.8/tcp/9000", "/ip4/5.6.7.8/udp/9000/quic-v1"}}
	addrs, err := a.ParseAnnounceAddrs()
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 announce addrs, got %d", len(addrs))
	}
}

func TestParseAnnounceAddrsRejectsInvalidMultiaddr(t *testing.T) {
	a := &TransportArgs{PublicAddrs: []string{"not-a-multiaddr"}}
	if _, err := a.ParseAnnounceAddrs(); err == nil {
		t.Fatal("expected error for invalid multiaddr")
	}
}

func TestParseAnnounceAddrsReturnsNilWhenEmpty(t *testing.T) {
	a := &TransportArgs{}
	addrs, err := a.ParseAnnounceAddrs()
	if err != nil {
		t.Fatal(err)
	}
	if addrs != nil {
		t.Fatalf("expected nil, got %v", addrs)
	}
}
