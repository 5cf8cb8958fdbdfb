package packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		header     Header
		fromClient bool
		wantSize   int
	}{
		{
			name:     "server command",
			header:   Header{Type: PacketTypeCommand, ID: 7},
			wantSize: ServerHeaderSize,
		},
		{
			name:       "client voice with client id",
			header:     Header{Type: PacketTypeVoice, ID: 0xfffe, ClientID: 42, Flags: FlagUnencrypted},
			fromClient: true,
			wantSize:   ClientHeaderSize,
		},
		{
			name:       "terminal fragment",
			header:     Header{Type: PacketTypeCommandLow, ID: 3, Flags: FlagFragmented | FlagCompressed, Fragment: 5, Last: true},
			fromClient: true,
			wantSize:   ClientHeaderSize + 1,
		},
		{
			name:     "middle fragment",
			header:   Header{Type: PacketTypeInit, ID: 1, Flags: FlagFragmented | FlagUnencrypted, Fragment: 2},
			wantSize: ServerHeaderSize + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.header.AppendTo(nil, tt.fromClient)
			require.Len(t, b, tt.wantSize)
			assert.Equal(t, tt.wantSize, tt.header.Size(tt.fromClient))

			got, n, err := ParseHeader(b, tt.fromClient)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, n)
			assert.Equal(t, tt.header, got)
		})
	}
}

func TestHeaderWireLayout(t *testing.T) {
	h := Header{Type: PacketTypeCommand, ID: 0x0102, ClientID: 0x0304, Flags: FlagNewProtocol}
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x22}, h.AppendTo(nil, true))
	assert.Equal(t, []byte{0x01, 0x02, 0x22}, h.AppendTo(nil, false))

	frag := Header{Type: PacketTypeCommand, ID: 1, Flags: FlagFragmented, Fragment: 3, Last: true}
	assert.Equal(t, []byte{0x00, 0x01, 0x12, 0x83}, frag.AppendTo(nil, false))
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		client  bool
		wantErr error
	}{
		{"empty", nil, false, ErrShortPacket},
		{"short client header", []byte{0, 1, 0, 2}, true, ErrShortPacket},
		{"undefined type", []byte{0, 1, 0x0c}, false, ErrInvalidType},
		{"fragmented voice", []byte{0, 1, 0x10}, false, ErrInvalidFlags},
		{"fragment byte missing", []byte{0, 1, 0x12}, false, ErrShortPacket},
		{"compressed ping", []byte{0, 1, 0x44}, false, ErrInvalidFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseHeader(tt.data, tt.client)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPacketTypeProperties(t *testing.T) {
	assert.True(t, PacketTypeCommand.IsReliable())
	assert.True(t, PacketTypeInit.IsReliable())
	assert.False(t, PacketTypeVoice.IsReliable())
	assert.False(t, PacketTypePing.IsReliable())

	ack, ok := PacketTypeCommandLow.AckType()
	require.True(t, ok)
	assert.Equal(t, PacketTypeAckLow, ack)

	acked, ok := PacketTypeAck.AcknowledgedType()
	require.True(t, ok)
	assert.Equal(t, PacketTypeCommand, acked)

	_, ok = PacketTypeInit.AckType()
	assert.False(t, ok)

	assert.Equal(t, "VoiceWhisper", PacketTypeVoiceWhisper.String())
	assert.Equal(t, "PacketType(12)", PacketType(12).String())
}

func TestDataRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		typ        PacketType
		data       Data
		fromClient bool
	}{
		{"command", PacketTypeCommand, NewCommand("clientinit").Push("client_nickname", "Bob Builder"), true},
		{"init", PacketTypeInit, &Init{Payload: []byte{1, 2, 3}}, true},
		{"ping", PacketTypePing, &Ping{}, false},
		{"pong", PacketTypePong, &Pong{ID: 513}, true},
		{"ack low", PacketTypeAckLow, &Ack{ID: 9}, false},
		{"client voice", PacketTypeVoice, &Voice{ID: 1, Codec: 4, Payload: []byte("opus")}, true},
		{"server voice", PacketTypeVoice, &Voice{ID: 1, From: 12, Codec: 4, Payload: []byte("opus")}, false},
		{"client whisper", PacketTypeVoiceWhisper, &VoiceWhisper{
			ID: 2, Codec: 5, Channels: []uint64{1, 1 << 40}, Clients: []uint16{3}, Payload: []byte{9},
		}, true},
		{"server whisper", PacketTypeVoiceWhisper, &VoiceWhisper{ID: 2, From: 7, Codec: 5, Payload: []byte{9}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalData(tt.typ, tt.data, tt.fromClient)
			require.NoError(t, err)

			got, err := UnmarshalData(tt.typ, b, tt.fromClient)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestMarshalDataMismatch(t *testing.T) {
	_, err := MarshalData(PacketTypeCommand, &Voice{}, true)
	assert.ErrorIs(t, err, ErrDataMismatch)

	_, err = MarshalData(PacketTypeAck, NewCommand("x"), true)
	assert.ErrorIs(t, err, ErrDataMismatch)
}

func TestUnmarshalTruncated(t *testing.T) {
	_, err := UnmarshalData(PacketTypeAck, []byte{1}, false)
	assert.ErrorIs(t, err, ErrShortPacket)

	_, err = UnmarshalData(PacketTypeVoiceWhisper, []byte{0, 1, 5, 2, 0, 1, 2}, true)
	assert.ErrorIs(t, err, ErrShortPacket)
}
