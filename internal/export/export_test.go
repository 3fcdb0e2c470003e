// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/wire"
)

func samplePacket() wire.AppPacket {
	var pkt wire.AppPacket
	pkt.TimestampSec = 1700000000
	pkt.Dir = wire.DirectionIngress
	pkt.Length = 64
	pkt.Link.SrcMAC = [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	pkt.Link.DstMAC = [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x02}
	pkt.Link.EtherType = uint16(wire.EtherTypeIPv4)
	pkt.SetIPv4(wire.IPv4Payload{
		Src:       [4]byte{127, 0, 0, 1},
		Dst:       [4]byte{127, 0, 0, 1},
		Protocol:  6,
		Transport: wire.NewTCPTransport(wire.TCPHeader{SPort: 51234, DPort: 9, Flags: wire.TCPFlagSYN}),
	})
	return pkt
}

func TestWriter_Export_WritesTabSeparatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture")
	w, err := New(path)
	require.NoError(t, err)

	require.NoError(t, w.Export([]wire.AppPacket{samplePacket()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimRight(string(data), "\n")
	fields := strings.Split(line, "\t")
	require.Len(t, fields, 13)
	assert.Equal(t, "1700000000", fields[0])
	assert.Equal(t, "ingress", fields[1])
	assert.Equal(t, "127.0.0.1", fields[6])
	assert.Equal(t, "127.0.0.1", fields[7])
	assert.Equal(t, "6", fields[8])
	assert.Equal(t, "51234", fields[9])
	assert.Equal(t, "9", fields[10])
	assert.Equal(t, "S", fields[11])
	assert.Equal(t, "64", fields[12])
}

func TestWriter_Export_AppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture")
	w, err := New(path)
	require.NoError(t, err)

	require.NoError(t, w.Export([]wire.AppPacket{samplePacket()}))
	require.NoError(t, w.Export([]wire.AppPacket{samplePacket()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
}
