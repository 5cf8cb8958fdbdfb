// Package crypto provides the identity and packet protection primitives the
// protocol engine consumes.
//
// The engine treats keys as opaque: a socket is constructed with a
// [PrivateKey], a connection learns its peer's [PublicKey] from the
// handshake, and the wire codec only ever sees the resulting [PacketCipher].
//
// # Key Generation
//
//	key, err := crypto.GeneratePrivateKey()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Public key:", key.PublicKey())
//
// # Packet Protection
//
// Both peers derive the same symmetric packet key from Curve25519 ECDH
// followed by HKDF-SHA256, and protect every datagram with ChaCha20-Poly1305
// using the Noise protocol framework's cipher implementation. The HKDF salt
// combines a random value from each side's [Hello], so every connection
// gets its own key even between the same identities:
//
//	salt := crypto.SessionSalt(clientHello, serverHello)
//	cipher, err := crypto.NewSessionCipher(myKey, peerHello.Key, salt)
//	sealed := cipher.Seal(nil, nonce, header, payload)
//	payload, err = cipher.Open(nil, nonce, header, sealed)
//
// Nonces are never transmitted. The codec derives them from the packet
// direction, type, generation, id and fragment index, so every datagram of a
// session uses a distinct nonce.
package crypto
