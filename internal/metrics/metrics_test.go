package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopDoesNotPanic(t *testing.T) {
	var r Recorder = Noop{}
	r.ActiveConnectionsInc()
	r.ActiveConnectionsDec()
	r.DialQueueSizeInc()
	r.DialQueueSizeDec()
	r.PendingMessagesDecBy(3)
	r.SubscribedTopicsInc()
}

func TestMetricsIncDec(t *testing.T) {
	m := New()
	m.ActiveConnectionsInc()
	m.ActiveConnectionsInc()
	m.ActiveConnectionsDec()
	if got := testutil.ToFloat64(m.activeConnections); got != 1 {
		t.Errorf("active connections = %v, want 1", got)
	}

	m.PendingMessagesInc()
	m.PendingMessagesInc()
	m.PendingMessagesInc()
	m.PendingMessagesDecBy(2)
	if got := testutil.ToFloat64(m.pendingMessages); got != 1 {
		t.Errorf("pending messages = %v, want 1", got)
	}
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	m := New()
	if m.Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
