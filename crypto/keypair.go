package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the size of private and public keys in bytes.
const KeySize = 32

// PublicKey is a Curve25519 public key.
type PublicKey [KeySize]byte

// String returns the hex encoding of the key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePublicKey decodes a hex encoded public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var p PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != KeySize {
		return p, fmt.Errorf("public key has %d bytes, want %d", len(b), KeySize)
	}
	copy(p[:], b)
	return p, nil
}

// PrivateKey is the long-term identity of a socket.
type PrivateKey struct {
	private [KeySize]byte
	public  PublicKey
}

// GeneratePrivateKey creates a new random identity.
func GeneratePrivateKey() (*PrivateKey, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	key := &PrivateKey{
		private: *privateKey,
		public:  *publicKey,
	}
	ZeroBytes(privateKey[:])
	return key, nil
}

// PrivateKeyFromBytes restores an identity from its 32 byte secret.
func PrivateKeyFromBytes(secret []byte) (*PrivateKey, error) {
	if len(secret) != KeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d", len(secret), KeySize)
	}
	if isZero(secret) {
		return nil, errors.New("invalid private key: all zeros")
	}

	key := &PrivateKey{}
	copy(key.private[:], secret)

	pub, err := curve25519.X25519(key.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	copy(key.public[:], pub)
	return key, nil
}

// PublicKey returns the public half of the identity.
func (k *PrivateKey) PublicKey() PublicKey {
	return k.public
}

// Bytes returns a copy of the secret key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.private[:]...)
}

// Wipe erases the secret key.
func (k *PrivateKey) Wipe() {
	ZeroBytes(k.private[:])
}

func isZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
