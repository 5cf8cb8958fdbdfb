package crypto

import (
	"crypto/rand"
	"fmt"
)

// SaltSize is the number of random bytes each side contributes to a
// session salt.
const SaltSize = 16

// HelloSize is the encoded size of a Hello.
const HelloSize = KeySize + SaltSize

// Hello is the key material one side announces in its Init packet: its
// identity and a random value drawn for this connection only.
type Hello struct {
	Key    PublicKey
	Random [SaltSize]byte
}

// NewHello announces key with fresh randomness.
func NewHello(key *PrivateKey) (Hello, error) {
	h := Hello{Key: key.PublicKey()}
	if _, err := rand.Read(h.Random[:]); err != nil {
		return h, fmt.Errorf("read session random: %w", err)
	}
	return h, nil
}

// Marshal encodes the hello as key followed by random.
func (h Hello) Marshal() []byte {
	b := make([]byte, 0, HelloSize)
	b = append(b, h.Key[:]...)
	return append(b, h.Random[:]...)
}

// ParseHello decodes a hello produced by Marshal.
func ParseHello(b []byte) (Hello, error) {
	var h Hello
	if len(b) != HelloSize {
		return h, fmt.Errorf("hello has %d bytes, want %d", len(b), HelloSize)
	}
	copy(h.Key[:], b[:KeySize])
	copy(h.Random[:], b[KeySize:])
	return h, nil
}

// SessionSalt combines the randomness of both sides. The client's hello
// comes first, so both peers compute the same salt.
func SessionSalt(client, server Hello) []byte {
	salt := make([]byte, 0, 2*SaltSize)
	salt = append(salt, client.Random[:]...)
	return append(salt, server.Random[:]...)
}
