// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/wire"
)

func tcpPacket(src, dst [4]byte, length uint32) wire.AppPacket {
	var pkt wire.AppPacket
	pkt.Length = length
	pkt.SetIPv4(wire.IPv4Payload{
		Src:       src,
		Dst:       dst,
		Protocol:  6,
		Transport: wire.NewTCPTransport(wire.TCPHeader{DPort: 443}),
	})
	return pkt
}

func TestAggregator_Observe_AccumulatesProtocolCounters(t *testing.T) {
	a := New(nil)
	a.observe(tcpPacket([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 100))
	a.observe(tcpPacket([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 200))

	snap := a.Snapshot()
	require.Contains(t, snap.Transport, "tcp")
	assert.EqualValues(t, 2, snap.Transport["tcp"].Packets)
	assert.EqualValues(t, 300, snap.Transport["tcp"].Bytes)
	assert.EqualValues(t, 2, snap.TotalPacket)
	require.Contains(t, snap.Network, "ipv4")
}

func TestAggregator_Observe_BuildsTopSourcesAndDests(t *testing.T) {
	a := New(nil)
	for i := 0; i < 3; i++ {
		a.observe(tcpPacket([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 9}, 10))
	}
	a.observe(tcpPacket([4]byte{10, 0, 0, 5}, [4]byte{10, 0, 0, 9}, 10))

	snap := a.Snapshot()
	require.NotEmpty(t, snap.TopSources)
	assert.Equal(t, "10.0.0.1", snap.TopSources[0].Key)
	assert.EqualValues(t, 3, snap.TopSources[0].Count)

	require.NotEmpty(t, snap.TopDests)
	assert.Equal(t, "10.0.0.9", snap.TopDests[0].Key)
	assert.EqualValues(t, 4, snap.TopDests[0].Count)
}

func TestAggregator_Observe_HostFallsBackToAddressWithoutResolver(t *testing.T) {
	a := New(nil)
	a.observe(tcpPacket([4]byte{10, 0, 0, 1}, [4]byte{93, 184, 216, 34}, 10))

	snap := a.Snapshot()
	require.NotEmpty(t, snap.TopHosts)
	assert.Equal(t, "93.184.216.34", snap.TopHosts[0].Key)
}

func TestAggregator_TopEntries_CapsAtTen(t *testing.T) {
	a := New(nil)
	for i := 0; i < 15; i++ {
		a.observe(tcpPacket([4]byte{10, 0, 0, byte(i)}, [4]byte{10, 0, 0, 9}, 10))
	}
	snap := a.Snapshot()
	assert.Len(t, snap.TopSources, 10)
}

func TestAggregator_Reset_ClearsAllState(t *testing.T) {
	a := New(nil)
	a.observe(tcpPacket([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 10))
	a.Reset()

	snap := a.Snapshot()
	assert.Empty(t, snap.Link)
	assert.Empty(t, snap.Transport)
	assert.Empty(t, snap.TopSources)
	assert.Zero(t, snap.TotalPacket)
}
