package codec

import (
	"errors"
	"fmt"
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/s2"

	"github.com/opd-ai/tsproto/crypto"
	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/packets"
)

const (
	// ReassemblyBuffers bounds the packets being reassembled at once.
	ReassemblyBuffers = 64
	// DuplicateWindow is how many completed reliable packets are
	// remembered to drop retransmissions.
	DuplicateWindow = 1024
)

type packetKey struct {
	Type       packets.PacketType
	Generation uint32
	ID         uint16
}

type reassembly struct {
	flags packets.Flags
	parts map[uint8][]byte
	last  int
}

// Decoded is the result of decoding one datagram.
type Decoded struct {
	// Packet is the complete packet, nil while fragments are missing or
	// when the datagram was a duplicate.
	Packet *packets.Packet
	// Reply is the automatic answer to send back: Ack, AckLow or Pong.
	Reply *packets.Packet
	// Duplicate is set for retransmissions of packets already delivered.
	Duplicate bool
	// Partial is set when the datagram was buffered as a fragment.
	Partial bool
}

// Receiver decodes the inbound datagrams of one connection.
type Receiver struct {
	addr       net.Addr
	fromClient bool
	obs        observe.Sink

	partial *lru.Cache[packetKey, *reassembly]
	done    *lru.Cache[packetKey, struct{}]

	started     [typeCount]bool
	lastID      [typeCount]uint16
	generations [typeCount]uint32
}

// NewReceiver creates a receiver for datagrams from addr. fromClient
// tells whether the peer is the client, which selects the header layout.
func NewReceiver(addr net.Addr, fromClient bool, obs observe.Sink) *Receiver {
	partial, err := lru.New[packetKey, *reassembly](ReassemblyBuffers)
	if err != nil {
		panic(err)
	}
	done, err := lru.New[packetKey, struct{}](DuplicateWindow)
	if err != nil {
		panic(err)
	}
	return &Receiver{
		addr:       addr,
		fromClient: fromClient,
		obs:        observe.OrNop(obs),
		partial:    partial,
		done:       done,
	}
}

// Pending returns the number of packets waiting for fragments.
func (r *Receiver) Pending() int {
	return r.partial.Len()
}

// Decode validates one datagram, decrypts it with cipher (nil before the
// session key is known) and returns the packet once all of its fragments
// arrived. Errors are *MalformedPacketError; the datagram should be
// dropped.
func (r *Receiver) Decode(data []byte, cipher crypto.PacketCipher) (Decoded, error) {
	h, n, err := packets.ParseHeader(data, r.fromClient)
	if err != nil {
		return Decoded{}, malformed(r.addr, "header", err)
	}
	t := h.Type

	encrypted := !h.Flags.Has(packets.FlagUnencrypted)
	switch {
	case encrypted && cipher == nil:
		return Decoded{}, malformed(r.addr, t.String(), ErrNoCipher)
	case !encrypted && cipher != nil && requiresEncryption(t):
		return Decoded{}, malformed(r.addr, t.String(), ErrEncryptionRequired)
	}

	gen := r.generation(t, h.ID)
	key := packetKey{Type: t, Generation: gen, ID: h.ID}

	body := data[n:]
	if encrypted {
		body, err = cipher.Open(nil, Nonce(r.fromClient, t, h.Fragment, gen, h.ID), data[:n], body)
		if err != nil {
			return Decoded{}, malformed(r.addr, "decrypt", err)
		}
	}

	if r.tracksDuplicates(t) && r.done.Contains(key) {
		return Decoded{Duplicate: true, Reply: ackFor(h)}, nil
	}

	fragments := 1
	if h.Flags.Has(packets.FlagFragmented) {
		body, fragments, err = r.reassemble(key, &h, body)
		if err != nil {
			return Decoded{}, malformed(r.addr, "fragment", err)
		}
		if fragments == 0 {
			return Decoded{Partial: true}, nil
		}
	}

	if h.Flags.Has(packets.FlagCompressed) {
		body, err = decompress(body)
		if err != nil {
			return Decoded{}, malformed(r.addr, "decompress", err)
		}
	}

	payload, err := packets.UnmarshalData(t, body, r.fromClient)
	if err != nil {
		return Decoded{}, malformed(r.addr, "payload", err)
	}

	if r.tracksDuplicates(t) {
		r.done.Add(key, struct{}{})
	}
	r.commit(t, h.ID, gen)

	h.Flags &^= packets.FlagFragmented
	h.Fragment = 0
	h.Last = false
	p := &packets.Packet{Header: h, Data: payload}

	r.obs.ObservePacket(observe.PacketRecord{
		Direction:  observe.Inbound,
		Addr:       r.addr,
		FromClient: r.fromClient,
		Packet:     p,
		Size:       len(body),
		Fragments:  fragments,
	})

	return Decoded{Packet: p, Reply: replyFor(p)}, nil
}

// tracksDuplicates excludes Init: its replies are the application's
// answer, so retransmitted Inits must reach it again.
func (r *Receiver) tracksDuplicates(t packets.PacketType) bool {
	return t == packets.PacketTypeCommand || t == packets.PacketTypeCommandLow
}

// reassemble buffers one fragment. It returns the joined payload and the
// fragment count once the packet is complete, and a zero count before.
func (r *Receiver) reassemble(key packetKey, h *packets.Header, body []byte) ([]byte, int, error) {
	buf, ok := r.partial.Get(key)
	if !ok {
		buf = &reassembly{
			flags: h.Flags,
			parts: make(map[uint8][]byte),
			last:  -1,
		}
		r.partial.Add(key, buf)
	}

	if h.Flags.Has(packets.FlagCompressed) != buf.flags.Has(packets.FlagCompressed) {
		r.partial.Remove(key)
		return nil, 0, fmt.Errorf("%w: compression flag differs between fragments", ErrFragmentOrder)
	}
	if h.Last {
		if buf.last >= 0 && buf.last != int(h.Fragment) {
			r.partial.Remove(key)
			return nil, 0, fmt.Errorf("%w: two terminal fragments", ErrFragmentOrder)
		}
		buf.last = int(h.Fragment)
	}
	if buf.last >= 0 && int(h.Fragment) > buf.last {
		r.partial.Remove(key)
		return nil, 0, fmt.Errorf("%w: fragment %d after terminal %d", ErrFragmentOrder, h.Fragment, buf.last)
	}

	buf.parts[h.Fragment] = append([]byte(nil), body...)
	if buf.last < 0 || len(buf.parts) != buf.last+1 {
		return nil, 0, nil
	}

	r.partial.Remove(key)
	size := 0
	for _, part := range buf.parts {
		size += len(part)
	}
	out := make([]byte, 0, size)
	for i := 0; i <= buf.last; i++ {
		out = append(out, buf.parts[uint8(i)]...)
	}
	return out, buf.last + 1, nil
}

// generation estimates the id generation of an inbound packet relative to
// the newest id seen for its type.
func (r *Receiver) generation(t packets.PacketType, id uint16) uint32 {
	if !r.started[t] {
		return 0
	}
	gen := r.generations[t]
	last := r.lastID[t]
	switch {
	case id < last && last-id > 0x8000:
		return gen + 1
	case id > last && id-last > 0x8000 && gen > 0:
		return gen - 1
	}
	return gen
}

func (r *Receiver) commit(t packets.PacketType, id uint16, gen uint32) {
	if !r.started[t] || gen > r.generations[t] || (gen == r.generations[t] && id > r.lastID[t]) {
		r.started[t] = true
		r.generations[t] = gen
		r.lastID[t] = id
	}
}

func decompress(b []byte) ([]byte, error) {
	n, err := s2.DecodedLen(b)
	if err != nil {
		return nil, err
	}
	if n > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes decompressed", ErrPacketTooLarge, n)
	}
	return s2.Decode(nil, b)
}

func ackFor(h packets.Header) *packets.Packet {
	t, ok := h.Type.AckType()
	if !ok {
		return nil
	}
	return packets.NewPacket(t, &packets.Ack{ID: h.ID})
}

func replyFor(p *packets.Packet) *packets.Packet {
	if p.Type() == packets.PacketTypePing {
		return packets.NewPacket(packets.PacketTypePong, &packets.Pong{ID: p.Header.ID})
	}
	return ackFor(p.Header)
}

// IsMalformed reports whether err rejected an inbound datagram.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedPacket)
}
