// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package maps

import (
	"net"
	"os"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryxhq/oryx/internal/wire"
)

func newTestMap(t *testing.T, keySize uint32) *ebpf.Map {
	t.Helper()
	if os.Getuid() != 0 {
		t.Skip("skipping eBPF map test - requires root privileges")
	}

	m, err := ebpf.NewMap(&ebpf.MapSpec{
		Type:       ebpf.Hash,
		KeySize:    keySize,
		ValueSize:  8,
		MaxEntries: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestFilterMap_SetGet(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("skipping eBPF map test - requires root privileges")
	}
	m, err := ebpf.NewMap(&ebpf.MapSpec{
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  16,
		MaxEntries: 1,
	})
	require.NoError(t, err)
	defer m.Close()

	fm := NewFilterMap(m)
	want := wire.FilterState{
		TransportMask: wire.FilterTCP | wire.FilterUDP,
		NetworkMask:   wire.FilterIPv4,
		LinkMask:      wire.FilterIPv4,
		Direction:     1<<0 | 1<<1,
	}
	require.NoError(t, fm.Set(want))

	got, err := fm.Get()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBlockMap_MergeAndDelete(t *testing.T) {
	m := newTestMap(t, 4)
	bm := NewBlockMapV4(m)

	ip := net.ParseIP("10.0.0.5")
	require.NoError(t, bm.Merge(ip, wire.BlockMaskTriple{PortMask: 0, ProtoNum: 6, DirMask: 1}))
	require.NoError(t, bm.Merge(ip, wire.BlockMaskTriple{PortMask: 0, ProtoNum: 17, DirMask: 2}))

	entries, err := bm.Entries()
	require.NoError(t, err)
	got, ok := entries[ip.String()]
	require.True(t, ok)
	assert.Equal(t, uint8(1|2), got.DirMask)

	require.NoError(t, bm.Delete(ip))
	entries, err = bm.Entries()
	require.NoError(t, err)
	_, ok = entries[ip.String()]
	assert.False(t, ok)
}

func TestBlockMap_KeyRejectsWrongFamily(t *testing.T) {
	bm := NewBlockMapV4(nil)
	_, err := bm.key(net.ParseIP("::1"))
	assert.Error(t, err)

	bm6 := NewBlockMapV6(nil)
	_, err = bm6.key(net.ParseIP("10.0.0.1"))
	assert.Error(t, err)
}
