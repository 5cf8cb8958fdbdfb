package packets

import (
	"encoding/binary"
	"fmt"
)

// Flags are stored in the high nibble of the type byte.
type Flags uint8

const (
	FlagFragmented  Flags = 0x10
	FlagNewProtocol Flags = 0x20
	FlagCompressed  Flags = 0x40
	FlagUnencrypted Flags = 0x80

	flagMask Flags = 0xf0
)

// Has reports whether all bits of o are set in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// String lists the set flags.
func (f Flags) String() string {
	s := ""
	for _, x := range []struct {
		f    Flags
		name string
	}{
		{FlagUnencrypted, "U"},
		{FlagCompressed, "C"},
		{FlagNewProtocol, "N"},
		{FlagFragmented, "F"},
	} {
		if f.Has(x.f) {
			s += x.name
		} else {
			s += "-"
		}
	}
	return s
}

const (
	// ServerHeaderSize is the header size of packets sent by a server.
	ServerHeaderSize = 3
	// ClientHeaderSize is the header size of packets sent by a client,
	// which additionally carry the client id.
	ClientHeaderSize = 5

	// MaxFragmentIndex is the largest fragment index the frag byte holds.
	MaxFragmentIndex = 0x7f

	fragTerminal = 0x80
)

// Header is the fixed part of every datagram.
type Header struct {
	Type  PacketType
	Flags Flags
	// ID is the per-type packet id. All fragments of a packet share it.
	ID uint16
	// ClientID is only transmitted by clients.
	ClientID uint16
	// Fragment is the index of this fragment; only meaningful when the
	// Fragmented flag is set.
	Fragment uint8
	// Last marks the terminal fragment of a fragmented packet.
	Last bool
}

// Size returns the encoded header size. fromClient selects the client to
// server layout.
func (h *Header) Size(fromClient bool) int {
	n := ServerHeaderSize
	if fromClient {
		n = ClientHeaderSize
	}
	if h.Flags.Has(FlagFragmented) {
		n++
	}
	return n
}

// AppendTo appends the wire form of h to b.
func (h *Header) AppendTo(b []byte, fromClient bool) []byte {
	b = binary.BigEndian.AppendUint16(b, h.ID)
	if fromClient {
		b = binary.BigEndian.AppendUint16(b, h.ClientID)
	}
	b = append(b, byte(h.Flags&flagMask)|byte(h.Type)&0x0f)
	if h.Flags.Has(FlagFragmented) {
		frag := h.Fragment & MaxFragmentIndex
		if h.Last {
			frag |= fragTerminal
		}
		b = append(b, frag)
	}
	return b
}

// ParseHeader decodes the header at the start of data and returns it along
// with the number of bytes it occupied. fromClient selects the client to
// server layout.
func ParseHeader(data []byte, fromClient bool) (Header, int, error) {
	var h Header
	size := ServerHeaderSize
	if fromClient {
		size = ClientHeaderSize
	}
	if len(data) < size {
		return h, 0, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortPacket, len(data), size)
	}

	h.ID = binary.BigEndian.Uint16(data[0:2])
	if fromClient {
		h.ClientID = binary.BigEndian.Uint16(data[2:4])
	}
	typeByte := data[size-1]
	h.Type = PacketType(typeByte & 0x0f)
	h.Flags = Flags(typeByte) & flagMask

	if !h.Type.Valid() {
		return h, 0, fmt.Errorf("%w: %d", ErrInvalidType, uint8(h.Type))
	}

	if h.Flags.Has(FlagFragmented) {
		if !h.Type.IsReliable() {
			return h, 0, fmt.Errorf("%w: %s packets cannot be fragmented", ErrInvalidFlags, h.Type)
		}
		if len(data) < size+1 {
			return h, 0, fmt.Errorf("%w: missing fragment byte", ErrShortPacket)
		}
		frag := data[size]
		h.Fragment = frag & MaxFragmentIndex
		h.Last = frag&fragTerminal != 0
		size++
	}

	if h.Flags.Has(FlagCompressed) && h.Type != PacketTypeCommand && h.Type != PacketTypeCommandLow {
		return h, 0, fmt.Errorf("%w: %s packets cannot be compressed", ErrInvalidFlags, h.Type)
	}

	return h, size, nil
}

// PeekHeader parses only the header of a datagram. It is used to route a
// datagram before the owning connection decodes it.
func PeekHeader(data []byte, fromClient bool) (*Header, error) {
	h, _, err := ParseHeader(data, fromClient)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
