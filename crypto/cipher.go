package crypto

import (
	"errors"

	"github.com/flynn/noise"
)

// ErrAuthentication indicates a datagram whose authentication tag does not
// verify.
var ErrAuthentication = errors.New("packet authentication failed")

// PacketCipher seals and opens datagram payloads. The header of the datagram
// is passed as additional data so it is authenticated but stays readable.
type PacketCipher interface {
	// Seal appends the sealed plaintext to out.
	Seal(out []byte, nonce uint64, ad, plaintext []byte) []byte
	// Open appends the opened ciphertext to out.
	Open(out []byte, nonce uint64, ad, ciphertext []byte) ([]byte, error)
	// Overhead is the number of bytes Seal adds.
	Overhead() int
}

// tagSize is the Poly1305 tag size.
const tagSize = 16

type noiseCipher struct {
	c noise.Cipher
}

// NewPacketCipher returns a ChaCha20-Poly1305 cipher keyed with key.
func NewPacketCipher(key [KeySize]byte) PacketCipher {
	return &noiseCipher{c: noise.CipherChaChaPoly.Cipher(key)}
}

func (n *noiseCipher) Seal(out []byte, nonce uint64, ad, plaintext []byte) []byte {
	return n.c.Encrypt(out, nonce, ad, plaintext)
}

func (n *noiseCipher) Open(out []byte, nonce uint64, ad, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < tagSize {
		return nil, ErrAuthentication
	}
	plain, err := n.c.Decrypt(out, nonce, ad, ciphertext)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plain, nil
}

func (n *noiseCipher) Overhead() int {
	return tagSize
}
