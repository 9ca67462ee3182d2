// Package codec implements the wire framing used by the legacy unicast
// request/response protocol and the deterministic gossip message-id
// function shared by every topic.
package codec

import (
	"encoding/binary"
	"io"
	"log/slog"
)

// MaxLegacyPayload bounds how much a receiver will read for a single legacy
// request, regardless of what the length prefix claims. This is a wire
// compatibility policy, not a promise about maximum useful message size:
// the nominal header length is still honored for the mismatch warning.
const MaxLegacyPayload = 100 * 1024 * 1024

const lengthPrefixSize = 8

// AckByte is the single response byte that terminates the legacy
// request/response exchange. Its value carries no meaning.
const AckByte byte = 1

// WriteFramed writes an 8-byte big-endian length prefix followed by payload.
func WriteFramed(w io.Writer, payload []byte) error {
	var hdr [lengthPrefixSize]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFramed reads a length-prefixed payload, capped at MaxLegacyPayload
// regardless of the declared length. A mismatch between the declared and
// actual length is logged but does not fail the read: older peers are
// tolerated rather than rejected.
func ReadFramed(r io.Reader) ([]byte, error) {
	var hdr [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	declared := binary.BigEndian.Uint64(hdr[:])

	data, err := io.ReadAll(io.LimitReader(r, MaxLegacyPayload))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != declared {
		slog.Warn("legacy frame size mismatch", "declared", declared, "actual", len(data))
	}
	return data, nil
}

// WriteAck writes the single-byte response that terminates the legacy
// protocol. The value is irrelevant to the protocol; AckByte is used.
func WriteAck(w io.Writer) error {
	_, err := w.Write([]byte{AckByte})
	return err
}

// ReadAck drains (and discards) the single-byte ack response.
func ReadAck(r io.Reader) error {
	_, err := io.ReadAll(io.LimitReader(r, 100))
	return err
}

// ZeroPeerPlaceholder is substituted for the source peer id in the gossip
// message-id function when a message carries no signed source (anonymous
// publishing mode is not used by this transport, but the placeholder keeps
// the id function total).
var ZeroPeerPlaceholder = [3]byte{0, 1, 0}

// GossipMessageID is the deterministic message-id function used by every
// subscribed topic: the base58 source peer id (or ZeroPeerPlaceholder when
// the message is anonymous) concatenated with the decimal sequence number
// (or 0 when absent). It must be pure and symmetric across all peers so
// that duplicate suppression works overlay-wide.
func GossipMessageID(sourceBase58 string, anonymous bool, seqNo uint64, hasSeqNo bool) string {
	if anonymous || sourceBase58 == "" {
		sourceBase58 = string(ZeroPeerPlaceholder[:])
	}
	n := seqNo
	if !hasSeqNo {
		n = 0
	}
	return sourceBase58 + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
