package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// packetKeyInfo binds derived keys to their use.
var packetKeyInfo = []byte("tsproto packet key v1")

// DeriveSharedSecret computes the Curve25519 ECDH secret between the
// identity and a peer public key.
func DeriveSharedSecret(peer PublicKey, key *PrivateKey) ([KeySize]byte, error) {
	var result [KeySize]byte

	shared, err := curve25519.X25519(key.private[:], peer[:])
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":        "DeriveSharedSecret",
			"peer_key_prefix": fmt.Sprintf("%x", peer[:4]),
			"error":           err.Error(),
		}).Warn("X25519 computation failed")
		return result, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	copy(result[:], shared)
	ZeroBytes(shared)
	return result, nil
}

// ErrShortSalt indicates a session salt without enough fresh randomness.
var ErrShortSalt = errors.New("session salt too short")

// DerivePacketKey derives the symmetric packet key of one session. salt
// must be fresh per connection and at least SaltSize bytes long, so that
// reconnecting identities never share a key. Either side computes the same
// key from the same salt.
func DerivePacketKey(peer PublicKey, key *PrivateKey, salt []byte) ([KeySize]byte, error) {
	var packetKey [KeySize]byte
	if len(salt) < SaltSize {
		return packetKey, fmt.Errorf("%w: %d bytes, want at least %d", ErrShortSalt, len(salt), SaltSize)
	}

	shared, err := DeriveSharedSecret(peer, key)
	if err != nil {
		return packetKey, err
	}
	defer ZeroBytes(shared[:])

	if _, err := io.ReadFull(hkdf.New(sha256.New, shared[:], salt, packetKeyInfo), packetKey[:]); err != nil {
		return packetKey, fmt.Errorf("expand packet key: %w", err)
	}
	return packetKey, nil
}

// NewSessionCipher derives the packet key for a peer and session salt and
// returns the cipher protecting the session's datagrams.
func NewSessionCipher(key *PrivateKey, peer PublicKey, salt []byte) (PacketCipher, error) {
	packetKey, err := DerivePacketKey(peer, key, salt)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(packetKey[:])
	return NewPacketCipher(packetKey), nil
}
