package transport

import (
	"encoding/binary"

	"github.com/libp2p/go-libp2p/core/peer"
)

func peerIDFromBytes(b []byte) (peer.ID, error) {
	return peer.IDFromBytes(b)
}

func encodeBase58(b []byte) string {
	p, err := peer.IDFromBytes(b)
	if err != nil {
		return ""
	}
	return p.String()
}

// seqnoToUint64 decodes gossipsub's default 8-byte big-endian sequence
// number. Shorter payloads (never produced by this library's own
// publisher, but tolerated from other implementations) are zero-padded.
func seqnoToUint64(b []byte) uint64 {
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:])
}
