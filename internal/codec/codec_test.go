package codec

import (
	"bytes"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestFramedRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFramed(&buf, tt.payload); err != nil {
				t.Fatalf("WriteFramed: %v", err)
			}
			got, err := ReadFramed(&buf)
			if err != nil {
				t.Fatalf("ReadFramed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) && !(len(got) == 0 && len(tt.payload) == 0) {
				t.Errorf("got %v, want %v", got, tt.payload)
			}
		})
	}
}

func TestFramedRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "payload")
		var buf bytes.Buffer
		if err := WriteFramed(&buf, payload); err != nil {
			t.Fatalf("WriteFramed: %v", err)
		}
		got, err := ReadFramed(&buf)
		if err != nil {
			t.Fatalf("ReadFramed: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
		}
	})
}

func TestReadFramedTolerantOfLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	// Declare a length longer than what actually follows.
	if err := WriteFramed(&buf, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	// Corrupt the declared length (first 8 bytes) to claim more data than present.
	mangled := append([]byte(nil), raw...)
	mangled[7] = 0xff
	got, err := ReadFramed(bytes.NewReader(mangled))
	if err != nil {
		t.Fatalf("ReadFramed should tolerate mismatch, got error: %v", err)
	}
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("payload should still be delivered: got %v", got)
	}
}

func TestGossipMessageID(t *testing.T) {
	id1 := GossipMessageID("12D3KooW", false, 100, true)
	id2 := GossipMessageID("12D3KooW", false, 101, true)
	if id1 == id2 {
		t.Error("different sequence numbers must produce different ids")
	}
	anon := GossipMessageID("", true, 0, false)
	if !strings.Contains(anon, "0") {
		t.Errorf("anonymous id should fall back to the zero-peer placeholder, got %q", anon)
	}
}
