package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePrivateKey(t *testing.T) {
	a, err := GeneratePrivateKey()
	require.NoError(t, err)
	b, err := GeneratePrivateKey()
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey(), b.PublicKey())

	restored, err := PrivateKeyFromBytes(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey(), restored.PublicKey())
}

func TestPrivateKeyFromBytesErrors(t *testing.T) {
	_, err := PrivateKeyFromBytes(make([]byte, 16))
	assert.Error(t, err)

	_, err = PrivateKeyFromBytes(make([]byte, KeySize))
	assert.Error(t, err)
}

func TestParsePublicKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	parsed, err := ParsePublicKey(key.PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), parsed)

	_, err = ParsePublicKey("abcd")
	assert.Error(t, err)
	_, err = ParsePublicKey("zz")
	assert.Error(t, err)
}

func testSalt(t *testing.T) []byte {
	t.Helper()
	client, err := GeneratePrivateKey()
	require.NoError(t, err)
	a, err := NewHello(client)
	require.NoError(t, err)
	b, err := NewHello(client)
	require.NoError(t, err)
	return SessionSalt(a, b)
}

func TestDerivePacketKeyIsSymmetric(t *testing.T) {
	client, err := GeneratePrivateKey()
	require.NoError(t, err)
	server, err := GeneratePrivateKey()
	require.NoError(t, err)
	salt := testSalt(t)

	k1, err := DerivePacketKey(server.PublicKey(), client, salt)
	require.NoError(t, err)
	k2, err := DerivePacketKey(client.PublicKey(), server, salt)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	shared, err := DeriveSharedSecret(server.PublicKey(), client)
	require.NoError(t, err)
	assert.NotEqual(t, shared, k1, "packet key must be expanded, not the raw ECDH output")
}

func TestDerivePacketKeyRequiresSalt(t *testing.T) {
	client, err := GeneratePrivateKey()
	require.NoError(t, err)
	server, err := GeneratePrivateKey()
	require.NoError(t, err)

	_, err = DerivePacketKey(server.PublicKey(), client, nil)
	assert.ErrorIs(t, err, ErrShortSalt)
	_, err = NewSessionCipher(client, server.PublicKey(), make([]byte, SaltSize-1))
	assert.ErrorIs(t, err, ErrShortSalt)
}

func TestSessionsBetweenSameIdentitiesUseDistinctKeys(t *testing.T) {
	client, err := GeneratePrivateKey()
	require.NoError(t, err)
	server, err := GeneratePrivateKey()
	require.NoError(t, err)

	first, err := NewSessionCipher(client, server.PublicKey(), testSalt(t))
	require.NoError(t, err)
	second, err := NewSessionCipher(client, server.PublicKey(), testSalt(t))
	require.NoError(t, err)

	header := []byte{0, 0, 0x02}
	ct1 := first.Seal(nil, 0, header, []byte("aaaaaaaa"))
	ct2 := second.Seal(nil, 0, header, []byte("bbbbbbbb"))

	xored := make([]byte, 8)
	for i := range xored {
		xored[i] = ct1[i] ^ ct2[i]
	}
	assert.NotEqual(t, []byte{3, 3, 3, 3, 3, 3, 3, 3}, xored, "keystream reused across sessions")

	_, err = second.Open(nil, 0, header, ct1)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestHello(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	a, err := NewHello(key)
	require.NoError(t, err)
	b, err := NewHello(key)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), a.Key)
	assert.NotEqual(t, a.Random, b.Random)

	encoded := a.Marshal()
	require.Len(t, encoded, HelloSize)
	parsed, err := ParseHello(encoded)
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseHello(encoded[:KeySize])
	assert.Error(t, err)

	salt := SessionSalt(a, b)
	assert.Len(t, salt, 2*SaltSize)
	assert.Equal(t, a.Random[:], salt[:SaltSize])
	assert.NotEqual(t, salt, SessionSalt(b, a))
}

func TestSessionCipherRoundTrip(t *testing.T) {
	client, err := GeneratePrivateKey()
	require.NoError(t, err)
	server, err := GeneratePrivateKey()
	require.NoError(t, err)
	salt := testSalt(t)

	clientCipher, err := NewSessionCipher(client, server.PublicKey(), salt)
	require.NoError(t, err)
	serverCipher, err := NewSessionCipher(server, client.PublicKey(), salt)
	require.NoError(t, err)

	header := []byte{0, 1, 2}
	payload := []byte("clientinit client_nickname=test")

	sealed := clientCipher.Seal(nil, 42, header, payload)
	assert.Len(t, sealed, len(payload)+clientCipher.Overhead())

	opened, err := serverCipher.Open(nil, 42, header, sealed)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)

	t.Run("wrong nonce", func(t *testing.T) {
		_, err := serverCipher.Open(nil, 43, header, sealed)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("tampered header", func(t *testing.T) {
		_, err := serverCipher.Open(nil, 42, []byte{0, 1, 3}, sealed)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := serverCipher.Open(nil, 42, header, sealed[:8])
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestZeroBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	ZeroBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)

	ZeroBytes(nil)
}
