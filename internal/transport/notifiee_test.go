package transport

import (
	"testing"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
)

func TestTrackConnAndConnByIDRoundTrip(t *testing.T) {
	mn := mocknet.New()
	defer mn.Close()

	h1, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	if err := mn.LinkAll(); err != nil {
		t.Fatal(err)
	}
	if err := mn.ConnectAllButSelf(); err != nil {
		t.Fatal(err)
	}

	conns := h1.Network().ConnsToPeer(h2.ID())
	if len(conns) == 0 {
		t.Fatal("expected at least one connection between mock peers")
	}

	tr := &Transport[string]{}
	id := ConnID(7)
	tr.trackConn(conns[0], id)

	got, ok := tr.connByID(id)
	if !ok || got != conns[0] {
		t.Fatalf("connByID(%d) = %v, %v; want the tracked conn", id, got, ok)
	}

	gotID, ok := tr.untrackConn(conns[0])
	if !ok || gotID != id {
		t.Fatalf("untrackConn() = %v, %v; want %v, true", gotID, ok, id)
	}

	if _, ok := tr.connByID(id); ok {
		t.Fatal("expected connByID to miss after untrackConn")
	}
}

func TestCloseConnByIDClosesTheTrackedConnection(t *testing.T) {
	mn := mocknet.New()
	defer mn.Close()

	h1, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	if err := mn.LinkAll(); err != nil {
		t.Fatal(err)
	}
	if err := mn.ConnectAllButSelf(); err != nil {
		t.Fatal(err)
	}

	conns := h1.Network().ConnsToPeer(h2.ID())
	if len(conns) == 0 {
		t.Fatal("expected a connection between mock peers")
	}

	tr := &Transport[string]{sub: nil}
	id := ConnID(1)
	tr.trackConn(conns[0], id)

	tr.closeConnByID(h2.ID(), id)

	if !conns[0].IsClosed() {
		t.Fatal("expected the tracked connection to be closed")
	}
}

func TestCloseConnByIDIsSafeWhenConnectionAlreadyGone(t *testing.T) {
	tr := &Transport[string]{}
	tr.closeConnByID("unknown-peer-placeholder", ConnID(99))
}
