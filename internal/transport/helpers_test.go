package transport

import (
	"encoding/binary"
	"testing"

	pb "github.com/libp2p/go-libp2p-pubsub/pb"
)

func TestSeqnoToUint64TruncatesOversizedSeqno(t *testing.T) {
	oversized := make([]byte, 16)
	for i := range oversized {
		oversized[i] = byte(i + 1)
	}

	got := seqnoToUint64(oversized)
	want := binary.BigEndian.Uint64(oversized[len(oversized)-8:])
	if got != want {
		t.Fatalf("seqnoToUint64(%v) = %d, want %d", oversized, got, want)
	}
}

func TestSeqnoToUint64ZeroPadsShortSeqno(t *testing.T) {
	short := []byte{0x01, 0x02}
	got := seqnoToUint64(short)
	if want := uint64(0x0102); got != want {
		t.Fatalf("seqnoToUint64(%v) = %d, want %d", short, got, want)
	}
}

func TestMsgIDFnDoesNotPanicOnOversizedSeqno(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MsgIDFn panicked on oversized Seqno: %v", r)
		}
	}()
	m := &pb.Message{
		From:  []byte("not-a-real-peer-id"),
		Seqno: make([]byte, 32),
	}
	_ = MsgIDFn(m)
}
