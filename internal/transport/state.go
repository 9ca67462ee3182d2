package transport

import (
	"github.com/libp2p/go-libp2p/core/peer"
)

// queryState tracks one in-flight DHT GetClosestPeers lookup for the peer
// it resolves. At most one query per peer may be outstanding (the
// OngoingQuery invariant).
type queryState struct {
	target peer.ID
	cancel func()
}

// ongoingQueries is a bijection between a peer being resolved and the
// query currently resolving it, implemented as a single map keyed by
// peer: a query has no identifier of its own beyond its target, so no
// reverse map is kept.
type ongoingQueries struct {
	byPeer map[peer.ID]*queryState
}

func newOngoingQueries() *ongoingQueries {
	return &ongoingQueries{byPeer: make(map[peer.ID]*queryState)}
}

func (q *ongoingQueries) has(p peer.ID) bool {
	_, ok := q.byPeer[p]
	return ok
}

func (q *ongoingQueries) start(p peer.ID, cancel func()) {
	q.byPeer[p] = &queryState{target: p, cancel: cancel}
}

func (q *ongoingQueries) finish(p peer.ID) {
	if st, ok := q.byPeer[p]; ok {
		if st.cancel != nil {
			st.cancel()
		}
		delete(q.byPeer, p)
	}
}

// dialWaiters tracks PendingDial: callers queued behind an unresolved DHT
// lookup, keyed by the peer they're waiting on. OngoingDial in the
// originating design (keyed by ConnectionId, submitted to the swarm
// awaiting Established/Failed) has no Go equivalent here: host.Connect
// is synchronous, so the goroutine that calls it already observes the
// outcome directly and resolves its own waiter without round-tripping
// through the eventloop (see dialNow in dispatch.go).
type dialWaiters struct {
	pending map[peer.ID][]chan<- bool
}

func newDialWaiters() *dialWaiters {
	return &dialWaiters{
		pending: make(map[peer.ID][]chan<- bool),
	}
}

func (d *dialWaiters) addPending(p peer.ID, ch chan<- bool) {
	d.pending[p] = append(d.pending[p], ch)
}

func (d *dialWaiters) takePending(p peer.ID) []chan<- bool {
	chs := d.pending[p]
	delete(d.pending, p)
	return chs
}

func resolveOnce(ch chan<- bool, ok bool) {
	select {
	case ch <- ok:
	default:
	}
}

// pendingMessages buffers unicast payloads awaiting destination
// resolution, per peer.
type pendingMessages[T any] struct {
	byPeer map[peer.ID][]T
}

func newPendingMessages[T any]() *pendingMessages[T] {
	return &pendingMessages[T]{byPeer: make(map[peer.ID][]T)}
}

func (p *pendingMessages[T]) add(dst peer.ID, payload T) {
	p.byPeer[dst] = append(p.byPeer[dst], payload)
}

func (p *pendingMessages[T]) take(dst peer.ID) ([]T, bool) {
	msgs, ok := p.byPeer[dst]
	if !ok {
		return nil, false
	}
	delete(p.byPeer, dst)
	return msgs, true
}

func (p *pendingMessages[T]) count(dst peer.ID) int {
	return len(p.byPeer[dst])
}

// subscribedTopics maps a gossipsub topic hash to its canonical string
// name and ordering relaxation flag.
type subscribedTopics struct {
	byHash map[string]subscriptionEntry
}

type subscriptionEntry struct {
	Topic          string
	AllowUnordered bool
}

func newSubscribedTopics() *subscribedTopics {
	return &subscribedTopics{byHash: make(map[string]subscriptionEntry)}
}

func (s *subscribedTopics) set(hash, topic string, allowUnordered bool) {
	s.byHash[hash] = subscriptionEntry{Topic: topic, AllowUnordered: allowUnordered}
}

func (s *subscribedTopics) remove(hash string) {
	delete(s.byHash, hash)
}

func (s *subscribedTopics) get(hash string) (subscriptionEntry, bool) {
	e, ok := s.byHash[hash]
	return e, ok
}

// sequenceNumbers tracks the last accepted sequence number per
// (topic hash, source peer) pair for ordered topics.
type sequenceNumbers struct {
	last map[seqKey]uint64
}

type seqKey struct {
	topicHash string
	source    peer.ID
}

func newSequenceNumbers() *sequenceNumbers {
	return &sequenceNumbers{last: make(map[seqKey]uint64)}
}

func (s *sequenceNumbers) lastSeen(topicHash string, source peer.ID) (uint64, bool) {
	v, ok := s.last[seqKey{topicHash, source}]
	return v, ok
}

func (s *sequenceNumbers) record(topicHash string, source peer.ID, n uint64) {
	s.last[seqKey{topicHash, source}] = n
}

// activeConnections is the per-peer ordered sequence of currently
// established ConnIDs, most-recent first.
type activeConnections struct {
	byPeer map[peer.ID][]ConnID
}

func newActiveConnections() *activeConnections {
	return &activeConnections{byPeer: make(map[peer.ID][]ConnID)}
}

// push prepends id and returns any ConnIDs that must now be closed to
// respect MaxConnsPerPeer (oldest first).
func (a *activeConnections) push(p peer.ID, id ConnID, max int) []ConnID {
	conns := append([]ConnID{id}, a.byPeer[p]...)
	var evicted []ConnID
	for len(conns) > max {
		evicted = append(evicted, conns[len(conns)-1])
		conns = conns[:len(conns)-1]
	}
	a.byPeer[p] = conns
	return evicted
}

func (a *activeConnections) remove(p peer.ID, id ConnID) {
	conns := a.byPeer[p]
	for i, c := range conns {
		if c == id {
			a.byPeer[p] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(a.byPeer[p]) == 0 {
		delete(a.byPeer, p)
	}
}

func (a *activeConnections) count(p peer.ID) int {
	return len(a.byPeer[p])
}
