package packets

import "fmt"

// Fragment is one datagram of an encoded packet. A packet decomposes into
// one or more fragments which share its type and id.
type Fragment struct {
	Type PacketType
	ID   uint16
	// Generation counts how often the id counter of Type wrapped.
	Generation uint32
	Fragmented bool
	Index      uint8
	Last       bool
	// Data is the complete datagram including the header.
	Data []byte
}

// String returns a short description used in logs.
func (f *Fragment) String() string {
	if !f.Fragmented {
		return fmt.Sprintf("%s(id=%d, %d bytes)", f.Type, f.ID, len(f.Data))
	}
	return fmt.Sprintf("%s(id=%d, frag=%d last=%t, %d bytes)", f.Type, f.ID, f.Index, f.Last, len(f.Data))
}
