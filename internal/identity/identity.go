package identity

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// CheckKeyFilePermissions verifies that a key file is not readable by group or others.
func CheckKeyFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil // Windows file permissions work differently
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat key file %s: %w", path, err)
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("key file %s has insecure permissions %04o (expected 0600); fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// LoadOrCreateIdentity loads the PeerIdentity keypair from path, or
// generates and persists a fresh one if path does not yet exist. Every
// role binary (p2p-bootnode, p2p-worker, and any future role) calls this
// exactly once at startup, so the derived peer ID is logged here rather
// than at each call site.
func LoadOrCreateIdentity(path string) (crypto.PrivKey, error) {
	if data, err := os.ReadFile(path); err == nil {
		if err := CheckKeyFilePermissions(path); err != nil {
			return nil, err
		}
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal key from %s: %w", path, err)
		}
		logIdentity(priv, "loaded existing identity", path)
		return priv, nil
	}

	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}

	data, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to save key to %s: %w", path, err)
	}

	logIdentity(priv, "generated new identity", path)
	return priv, nil
}

// logIdentity reports the PeerIdentity derived from priv at Info level.
// Failing to derive it is not fatal to the caller that's mid-startup:
// the keypair itself is already usable, so this only downgrades to a
// warning naming the key file.
func logIdentity(priv crypto.PrivKey, msg, path string) {
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		slog.Warn("identity: failed to derive peer id from key", "key_file", path, "err", err)
		return
	}
	slog.Info("identity: "+msg, "peer_id", id, "key_file", path)
}

// PeerIDFromKeyFile loads (or creates) a key file and returns the derived peer ID.
func PeerIDFromKeyFile(path string) (peer.ID, error) {
	priv, err := LoadOrCreateIdentity(path)
	if err != nil {
		return "", err
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("failed to derive peer ID: %w", err)
	}
	return id, nil
}
