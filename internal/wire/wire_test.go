// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func encodedSize(v any) int { return binary.Size(v) }

func TestAppPacket_SrcDstIP_IPv4(t *testing.T) {
	var pkt AppPacket
	pkt.SetIPv4(IPv4Payload{
		Src:      [4]byte{10, 0, 0, 1},
		Dst:      [4]byte{10, 0, 0, 2},
		Protocol: 6,
	})

	assert.True(t, pkt.SrcIP().Equal(net.IPv4(10, 0, 0, 1)))
	assert.True(t, pkt.DstIP().Equal(net.IPv4(10, 0, 0, 2)))
	assert.EqualValues(t, 6, pkt.Protocol())
}

func TestAppPacket_SrcDstIP_ARPUsesProtocolAddressFields(t *testing.T) {
	var pkt AppPacket
	pkt.SetARP(ARPPayload{
		SenderIP: [4]byte{192, 168, 1, 1},
		TargetIP: [4]byte{192, 168, 1, 2},
	})

	assert.True(t, pkt.SrcIP().Equal(net.IPv4(192, 168, 1, 1)))
	assert.True(t, pkt.DstIP().Equal(net.IPv4(192, 168, 1, 2)))
	assert.Zero(t, pkt.Protocol())
	assert.Nil(t, pkt.Transport())
}

func TestAppPacket_Transport_PicksPopulatedVariant(t *testing.T) {
	var pkt AppPacket
	pkt.SetIPv6(IPv6Payload{
		Transport: NewTCPTransport(TCPHeader{DPort: 443}),
	})

	got := pkt.Transport()
	if assert.NotNil(t, got) {
		assert.Equal(t, TransportTCP, got.Kind)
		assert.EqualValues(t, 443, got.TCP().DPort)
	}
}

func TestTransport_UnionSizedToLargestVariant(t *testing.T) {
	// Payload must be sized to TCPHeader (the largest transport variant),
	// not the sum of all five — that's the whole point of emulating a union.
	assert.LessOrEqual(t, int(encodedSize(TCPHeader{})), len(Transport{}.Payload))
	assert.Less(t, encodedSize(Transport{}), encodedSize(TCPHeader{})+encodedSize(UDPHeader{})+
		encodedSize(ICMPHeader{})+encodedSize(SCTPHeader{})+encodedSize(UnknownHeader{}))
}

func TestNetwork_UnionSizedToLargestVariant(t *testing.T) {
	assert.Less(t, encodedSize(Network{}), encodedSize(IPv4Payload{})+encodedSize(IPv6Payload{})+encodedSize(ARPPayload{}))
}

func TestFilterState_Accepts(t *testing.T) {
	f := FilterState{
		LinkMask:      FilterIPv4,
		TransportMask: FilterTCP,
		Direction:     1 << uint8(DirectionIngress),
	}

	assert.True(t, f.Accepts(FilterIPv4, FilterTCP, DirectionIngress))
	assert.False(t, f.Accepts(FilterIPv4, FilterTCP, DirectionEgress), "direction not in mask")
	assert.False(t, f.Accepts(FilterIPv6, FilterTCP, DirectionIngress), "link layer not in mask")
	assert.False(t, f.Accepts(FilterIPv4, FilterUDP, DirectionIngress), "transport not in mask")
}

func TestFilterState_Accepts_ZeroTransportBitBypassesTransportMask(t *testing.T) {
	f := FilterState{LinkMask: FilterARP, Direction: 1<<uint8(DirectionIngress) | 1<<uint8(DirectionEgress)}
	assert.True(t, f.Accepts(FilterARP, 0, DirectionIngress), "ARP has no transport layer to gate on")
}

func TestDirBit(t *testing.T) {
	assert.EqualValues(t, 1<<0, DirBit("ingress"))
	assert.EqualValues(t, 1<<1, DirBit("egress"))
	assert.EqualValues(t, 1<<0|1<<1, DirBit("both"))
	assert.EqualValues(t, 1<<0|1<<1, DirBit("unrecognized"))
}
