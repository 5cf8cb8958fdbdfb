package codec

import (
	"net"

	"github.com/klauspost/compress/s2"

	"github.com/opd-ai/tsproto/crypto"
	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/packets"
)

// Sender encodes the outbound packets of one connection.
type Sender struct {
	addr       net.Addr
	fromClient bool
	clientID   uint16
	obs        observe.Sink

	maxDatagram int
	ids         [typeCount]uint16
	generations [typeCount]uint32
}

// NewSender creates a sender for packets to addr. fromClient selects the
// client header layout.
func NewSender(addr net.Addr, fromClient bool, obs observe.Sink) *Sender {
	return &Sender{
		addr:        addr,
		fromClient:  fromClient,
		obs:         observe.OrNop(obs),
		maxDatagram: MaxDatagramSize,
	}
}

// SetClientID sets the id written into client headers.
func (s *Sender) SetClientID(id uint16) {
	s.clientID = id
}

// NextID returns the id and generation the next packet of type t gets.
func (s *Sender) NextID(t packets.PacketType) (uint16, uint32) {
	return s.ids[t], s.generations[t]
}

func (s *Sender) advance(t packets.PacketType) {
	s.ids[t]++
	if s.ids[t] == 0 {
		s.generations[t]++
	}
}

// Encode assigns the next id for the packet's type, serializes the packet
// and splits it into datagrams. cipher may be nil before the session key
// is known. On success p.Header holds the id and flags that were sent.
func (s *Sender) Encode(p *packets.Packet, cipher crypto.PacketCipher) ([]packets.Fragment, error) {
	t := p.Type()
	if !t.Valid() {
		return nil, &CodecError{Type: t, Op: "header", Err: packets.ErrInvalidType}
	}

	payload, err := packets.MarshalData(t, p.Data, s.fromClient)
	if err != nil {
		return nil, &CodecError{Type: t, Op: "serialize", Err: err}
	}
	size := len(payload)

	var flags packets.Flags
	if t == packets.PacketTypeCommand || t == packets.PacketTypeCommandLow {
		flags |= packets.FlagNewProtocol
		if len(payload) >= CompressThreshold {
			if c := s2.Encode(nil, payload); len(c) < len(payload) {
				payload = c
				flags |= packets.FlagCompressed
			}
		}
	}

	encrypt := cipher != nil && sentEncrypted(t)
	overhead := 0
	if encrypt {
		overhead = cipher.Overhead()
	} else {
		flags |= packets.FlagUnencrypted
	}

	header := packets.Header{Type: t, Flags: flags, ClientID: s.clientID}
	room := s.maxDatagram - header.Size(s.fromClient) - overhead

	chunks := [][]byte{payload}
	if len(payload) > room {
		if !t.IsReliable() {
			return nil, &CodecError{Type: t, Op: "unreliable packets cannot be fragmented", Err: ErrPacketTooLarge}
		}
		header.Flags |= packets.FlagFragmented
		room = s.maxDatagram - header.Size(s.fromClient) - overhead
		n := (len(payload) + room - 1) / room
		if n > MaxFragments {
			return nil, &CodecError{Type: t, Op: "fragment", Err: ErrPacketTooLarge}
		}
		chunks = make([][]byte, 0, n)
		for off := 0; off < len(payload); off += room {
			chunks = append(chunks, payload[off:min(off+room, len(payload))])
		}
	}

	id, gen := s.NextID(t)
	s.advance(t)
	header.ID = id

	frags := make([]packets.Fragment, len(chunks))
	for i, chunk := range chunks {
		h := header
		if h.Flags.Has(packets.FlagFragmented) {
			h.Fragment = uint8(i)
			h.Last = i == len(chunks)-1
		}
		b := h.AppendTo(make([]byte, 0, h.Size(s.fromClient)+len(chunk)+overhead), s.fromClient)
		if encrypt {
			ad := append([]byte(nil), b...)
			b = cipher.Seal(b, Nonce(s.fromClient, t, h.Fragment, gen, id), ad, chunk)
		} else {
			b = append(b, chunk...)
		}
		frags[i] = packets.Fragment{
			Type:       t,
			ID:         id,
			Generation: gen,
			Fragmented: h.Flags.Has(packets.FlagFragmented),
			Index:      h.Fragment,
			Last:       h.Last || !h.Flags.Has(packets.FlagFragmented),
			Data:       b,
		}
	}

	p.Header = packets.Header{Type: t, Flags: flags, ID: id}
	if s.fromClient {
		p.Header.ClientID = s.clientID
	}

	s.obs.ObservePacket(observe.PacketRecord{
		Direction:  observe.Outbound,
		Addr:       s.addr,
		FromClient: s.fromClient,
		Packet:     p,
		Size:       size,
		Fragments:  len(frags),
	})
	return frags, nil
}
