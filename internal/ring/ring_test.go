// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ring

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/wire"
)

type fakePublisher struct {
	packets []wire.AppPacket
}

func (f *fakePublisher) Publish(p wire.AppPacket) { f.packets = append(f.packets, p) }

func TestDecode_RoundTrip(t *testing.T) {
	want := wire.AppPacket{
		Dir: wire.DirectionIngress,
		PID: 1234,
	}
	want.SetIPv4(wire.IPv4Payload{
		Src:      [4]byte{10, 0, 0, 1},
		Dst:      [4]byte{10, 0, 0, 2},
		Protocol: 6,
		Transport: wire.NewTCPTransport(wire.TCPHeader{
			SPort: 443,
			DPort: 51234,
			Flags: wire.TCPFlagSYN | wire.TCPFlagACK,
		}),
	})

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, want))

	// decode() only reinterprets bytes; TimestampSec is stamped by Run at
	// dequeue time, so it stays zero here.
	got, err := decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "10.0.0.1", got.SrcIP().String())
	assert.Equal(t, uint8(6), got.Protocol())
}

func TestDecode_ShortRecordIsProtocolError(t *testing.T) {
	_, err := decode([]byte{1, 2, 3})
	assert.Error(t, err)
}
