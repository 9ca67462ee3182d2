package transport

import (
	"github.com/libp2p/go-libp2p/core/network"
)

// wireNotifiee is the single source of ConnID assignment and
// connEstablishedEvent/connClosedEvent production, covering both
// outbound (our own dials) and inbound (peer-initiated) connections
// uniformly.
func (t *Transport[T]) wireNotifiee() {
	t.sub.Host.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			id := t.nextConnID()
			t.trackConn(c, id)
			select {
			case t.events <- connEstablishedEvent{Peer: c.RemotePeer(), ID: id}:
			default:
				// The events channel is generously buffered for exactly
				// this reason; a full buffer here would mean the
				// eventloop is wedged, which no amount of blocking on
				// this callback would fix.
			}
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			id, ok := t.untrackConn(c)
			if !ok {
				return
			}
			select {
			case t.events <- connClosedEvent{Peer: c.RemotePeer(), ID: id}:
			default:
			}
		},
	})
}

func (t *Transport[T]) trackConn(c network.Conn, id ConnID) {
	t.connIDsMu.Lock()
	defer t.connIDsMu.Unlock()
	if t.connIDs == nil {
		t.connIDs = make(map[network.Conn]ConnID)
		t.connsByID = make(map[ConnID]network.Conn)
	}
	t.connIDs[c] = id
	t.connsByID[id] = c
}

func (t *Transport[T]) untrackConn(c network.Conn) (ConnID, bool) {
	t.connIDsMu.Lock()
	defer t.connIDsMu.Unlock()
	id, ok := t.connIDs[c]
	delete(t.connIDs, c)
	delete(t.connsByID, id)
	return id, ok
}

// connByID resolves a previously assigned ConnID back to the
// network.Conn it was assigned to, if that connection hasn't since
// closed (and been untracked).
func (t *Transport[T]) connByID(id ConnID) (network.Conn, bool) {
	t.connIDsMu.Lock()
	defer t.connIDsMu.Unlock()
	c, ok := t.connsByID[id]
	return c, ok
}
