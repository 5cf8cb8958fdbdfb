package packets

import (
	"encoding/binary"
	"fmt"
)

// Data is the typed payload of a packet. It is implemented by *Command,
// *Init, *Ping, *Pong, *Ack, *Voice and *VoiceWhisper.
type Data interface {
	packetData()
}

// Init carries an opaque handshake step. Its content is produced and
// consumed by the connection manager.
type Init struct {
	Payload []byte
}

// Ping asks the peer for a Pong.
type Ping struct{}

// Pong answers the ping with the given packet id.
type Pong struct {
	ID uint16
}

// Ack acknowledges the reliable packet with the given id. Ack packets
// acknowledge Command packets and AckLow packets acknowledge CommandLow
// packets.
type Ack struct {
	ID uint16
}

// Voice is a single audio frame. From is only present on packets sent by
// the server and names the speaking client.
type Voice struct {
	ID      uint16
	From    uint16
	Codec   uint8
	Payload []byte
}

// VoiceWhisper is an audio frame addressed to a set of channels and
// clients. The target lists are only present on packets sent by a client.
type VoiceWhisper struct {
	ID       uint16
	From     uint16
	Codec    uint8
	Channels []uint64
	Clients  []uint16
	Payload  []byte
}

func (*Init) packetData()         {}
func (*Ping) packetData()         {}
func (*Pong) packetData()         {}
func (*Ack) packetData()          {}
func (*Voice) packetData()        {}
func (*VoiceWhisper) packetData() {}

func (d *Init) String() string { return fmt.Sprintf("Init(%d bytes)", len(d.Payload)) }
func (d *Pong) String() string { return fmt.Sprintf("Pong(%d)", d.ID) }
func (d *Ack) String() string  { return fmt.Sprintf("Ack(%d)", d.ID) }
func (d *Voice) String() string {
	return fmt.Sprintf("Voice(id=%d codec=%d %d bytes)", d.ID, d.Codec, len(d.Payload))
}

// MarshalData serializes the payload of a packet of type t. fromClient
// selects the client to server layout of voice payloads.
func MarshalData(t PacketType, d Data, fromClient bool) ([]byte, error) {
	switch t {
	case PacketTypeCommand, PacketTypeCommandLow:
		cmd, ok := d.(*Command)
		if !ok {
			return nil, mismatch(t, d)
		}
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
		return []byte(cmd.String()), nil

	case PacketTypeInit:
		in, ok := d.(*Init)
		if !ok {
			return nil, mismatch(t, d)
		}
		return append([]byte(nil), in.Payload...), nil

	case PacketTypePing:
		if _, ok := d.(*Ping); !ok && d != nil {
			return nil, mismatch(t, d)
		}
		return []byte{}, nil

	case PacketTypePong:
		pong, ok := d.(*Pong)
		if !ok {
			return nil, mismatch(t, d)
		}
		return binary.BigEndian.AppendUint16(nil, pong.ID), nil

	case PacketTypeAck, PacketTypeAckLow:
		ack, ok := d.(*Ack)
		if !ok {
			return nil, mismatch(t, d)
		}
		return binary.BigEndian.AppendUint16(nil, ack.ID), nil

	case PacketTypeVoice:
		v, ok := d.(*Voice)
		if !ok {
			return nil, mismatch(t, d)
		}
		b := binary.BigEndian.AppendUint16(make([]byte, 0, 5+len(v.Payload)), v.ID)
		if !fromClient {
			b = binary.BigEndian.AppendUint16(b, v.From)
		}
		b = append(b, v.Codec)
		return append(b, v.Payload...), nil

	case PacketTypeVoiceWhisper:
		v, ok := d.(*VoiceWhisper)
		if !ok {
			return nil, mismatch(t, d)
		}
		return marshalWhisper(v, fromClient)
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
}

func marshalWhisper(v *VoiceWhisper, fromClient bool) ([]byte, error) {
	b := binary.BigEndian.AppendUint16(nil, v.ID)
	if !fromClient {
		b = binary.BigEndian.AppendUint16(b, v.From)
		b = append(b, v.Codec)
		return append(b, v.Payload...), nil
	}
	if len(v.Channels) > 0xff || len(v.Clients) > 0xff {
		return nil, fmt.Errorf("%w: whisper targets %d channels and %d clients, at most 255 each",
			ErrInvalidPayload, len(v.Channels), len(v.Clients))
	}
	b = append(b, v.Codec, byte(len(v.Channels)), byte(len(v.Clients)))
	for _, c := range v.Channels {
		b = binary.BigEndian.AppendUint64(b, c)
	}
	for _, c := range v.Clients {
		b = binary.BigEndian.AppendUint16(b, c)
	}
	return append(b, v.Payload...), nil
}

// UnmarshalData parses the payload of a packet of type t. fromClient
// selects the client to server layout of voice payloads.
func UnmarshalData(t PacketType, b []byte, fromClient bool) (Data, error) {
	switch t {
	case PacketTypeCommand, PacketTypeCommandLow:
		cmd, err := ParseCommand(string(b))
		if err != nil {
			return nil, err
		}
		return cmd, nil

	case PacketTypeInit:
		return &Init{Payload: append([]byte(nil), b...)}, nil

	case PacketTypePing:
		return &Ping{}, nil

	case PacketTypePong:
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: pong needs 2 bytes, got %d", ErrShortPacket, len(b))
		}
		return &Pong{ID: binary.BigEndian.Uint16(b)}, nil

	case PacketTypeAck, PacketTypeAckLow:
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: ack needs 2 bytes, got %d", ErrShortPacket, len(b))
		}
		return &Ack{ID: binary.BigEndian.Uint16(b)}, nil

	case PacketTypeVoice:
		return unmarshalVoice(b, fromClient)

	case PacketTypeVoiceWhisper:
		return unmarshalWhisper(b, fromClient)
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
}

func unmarshalVoice(b []byte, fromClient bool) (*Voice, error) {
	need := 3
	if !fromClient {
		need = 5
	}
	if len(b) < need {
		return nil, fmt.Errorf("%w: voice needs %d bytes, got %d", ErrShortPacket, need, len(b))
	}
	v := &Voice{ID: binary.BigEndian.Uint16(b)}
	off := 2
	if !fromClient {
		v.From = binary.BigEndian.Uint16(b[off:])
		off += 2
	}
	v.Codec = b[off]
	v.Payload = append([]byte(nil), b[off+1:]...)
	return v, nil
}

func unmarshalWhisper(b []byte, fromClient bool) (*VoiceWhisper, error) {
	if !fromClient {
		if len(b) < 5 {
			return nil, fmt.Errorf("%w: whisper needs 5 bytes, got %d", ErrShortPacket, len(b))
		}
		return &VoiceWhisper{
			ID:      binary.BigEndian.Uint16(b),
			From:    binary.BigEndian.Uint16(b[2:]),
			Codec:   b[4],
			Payload: append([]byte(nil), b[5:]...),
		}, nil
	}

	if len(b) < 5 {
		return nil, fmt.Errorf("%w: whisper needs 5 bytes, got %d", ErrShortPacket, len(b))
	}
	v := &VoiceWhisper{
		ID:    binary.BigEndian.Uint16(b),
		Codec: b[2],
	}
	nChannels, nClients := int(b[3]), int(b[4])
	off := 5
	if len(b) < off+nChannels*8+nClients*2 {
		return nil, fmt.Errorf("%w: whisper target list truncated", ErrShortPacket)
	}
	if nChannels > 0 {
		v.Channels = make([]uint64, nChannels)
		for i := range v.Channels {
			v.Channels[i] = binary.BigEndian.Uint64(b[off:])
			off += 8
		}
	}
	if nClients > 0 {
		v.Clients = make([]uint16, nClients)
		for i := range v.Clients {
			v.Clients[i] = binary.BigEndian.Uint16(b[off:])
			off += 2
		}
	}
	v.Payload = append([]byte(nil), b[off:]...)
	return v, nil
}

func mismatch(t PacketType, d Data) error {
	return fmt.Errorf("%w: %s cannot carry %T", ErrDataMismatch, t, d)
}
