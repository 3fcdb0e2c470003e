// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire defines the fixed-size record layouts shared between the
// kernel classifier and the user-space reader. Every struct here must stay
// byte-identical to its C counterpart: fixed-width integers only, explicit
// padding bytes, no fields whose size varies by target pointer width.
//
// Transport and Network are true unions sized to their largest variant.
// Go has no union primitive, so each is a Kind tag plus a fixed-size
// opaque byte blob, encoded/decoded with encoding/binary; the blob is
// sized to the largest variant, not the sum of all of them, so AppPacket
// stays byte-identical to and no larger than the C struct/union pair in
// ../ebpf/programs/c/common.h.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// Direction identifies which side of the TC hook captured a packet.
type Direction uint8

const (
	DirectionIngress Direction = 0
	DirectionEgress  Direction = 1
)

func (d Direction) String() string {
	if d == DirectionEgress {
		return "egress"
	}
	return "ingress"
}

// EtherType mirrors the link-layer ethertypes the classifier recognizes.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeIPv6 EtherType = 0x86DD
	EtherTypeARP  EtherType = 0x0806
)

// NetworkKind tags which variant of AppPacket.Net is encoded in its payload.
type NetworkKind uint8

const (
	NetworkNone NetworkKind = 0
	NetworkIPv4 NetworkKind = 1
	NetworkIPv6 NetworkKind = 2
	NetworkARP  NetworkKind = 3
)

// TransportKind tags which variant of a Transport is encoded in its payload.
type TransportKind uint8

const (
	TransportNone    TransportKind = 0
	TransportTCP     TransportKind = 1
	TransportUDP     TransportKind = 2
	TransportICMP    TransportKind = 3
	TransportICMPv6  TransportKind = 4
	TransportSCTP    TransportKind = 5
	TransportUnknown TransportKind = 6
)

// LinkHeader carries the Ethernet frame header. Fixed at 14 bytes; embedding
// callers pad separately since [6]byte fields need no alignment padding of
// their own.
type LinkHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16
}

// TCPHeader is the transport payload for TransportTCP. 20 bytes, the
// largest transport variant — this size sets transportPayloadLen.
type TCPHeader struct {
	SPort  uint16
	DPort  uint16
	Flags  uint8
	_      [3]byte // padding
	Seq    uint32
	Ack    uint32
	Window uint16
	_      [2]byte // padding
}

// TCP flag bits, matching the on-wire TCP header.
const (
	TCPFlagFIN uint8 = 1 << 0
	TCPFlagSYN uint8 = 1 << 1
	TCPFlagRST uint8 = 1 << 2
	TCPFlagPSH uint8 = 1 << 3
	TCPFlagACK uint8 = 1 << 4
	TCPFlagURG uint8 = 1 << 5
)

// UDPHeader is the transport payload for TransportUDP.
type UDPHeader struct {
	SPort  uint16
	DPort  uint16
	Length uint16
	_      [2]byte // padding
}

// ICMPHeader covers both TransportICMP and TransportICMPv6.
type ICMPHeader struct {
	Type uint8
	Code uint8
	_    [2]byte // padding
}

// SCTPHeader is the transport payload for TransportSCTP.
type SCTPHeader struct {
	SPort           uint16
	DPort           uint16
	VerificationTag uint32
}

// UnknownHeader is used when the next-header/protocol value isn't recognized.
type UnknownHeader struct {
	ProtocolNumber uint8
	_              [7]byte // padding
}

// transportPayloadLen is sized to TCPHeader, the largest transport variant.
// Every other variant's encoding leaves the remaining bytes zeroed.
const transportPayloadLen = 20

// Transport is a fixed-size union over the five transport variants,
// mirroring struct transport in ../ebpf/programs/c/common.h. Only Kind's
// matching decoder returns meaningful data; nothing reads Payload directly.
type Transport struct {
	Kind    TransportKind
	_       [7]byte // pad Kind up to Payload's alignment
	Payload [transportPayloadLen]byte
}

// NewTCPTransport encodes h as a TransportTCP-tagged Transport.
func NewTCPTransport(h TCPHeader) Transport { return newTransport(TransportTCP, h) }

// NewUDPTransport encodes h as a TransportUDP-tagged Transport.
func NewUDPTransport(h UDPHeader) Transport { return newTransport(TransportUDP, h) }

// NewICMPTransport encodes h as a TransportICMP-tagged Transport.
func NewICMPTransport(h ICMPHeader) Transport { return newTransport(TransportICMP, h) }

// NewICMPv6Transport encodes h as a TransportICMPv6-tagged Transport.
func NewICMPv6Transport(h ICMPHeader) Transport { return newTransport(TransportICMPv6, h) }

// NewSCTPTransport encodes h as a TransportSCTP-tagged Transport.
func NewSCTPTransport(h SCTPHeader) Transport { return newTransport(TransportSCTP, h) }

// NewUnknownTransport encodes h as a TransportUnknown-tagged Transport.
func NewUnknownTransport(h UnknownHeader) Transport { return newTransport(TransportUnknown, h) }

func newTransport(kind TransportKind, variant any) Transport {
	var t Transport
	t.Kind = kind
	encodeInto(t.Payload[:], variant)
	return t
}

// TCP decodes Payload as a TCPHeader; only meaningful when Kind == TransportTCP.
func (t *Transport) TCP() TCPHeader {
	var h TCPHeader
	decodeFrom(t.Payload[:binary.Size(h)], &h)
	return h
}

// UDP decodes Payload as a UDPHeader; only meaningful when Kind == TransportUDP.
func (t *Transport) UDP() UDPHeader {
	var h UDPHeader
	decodeFrom(t.Payload[:binary.Size(h)], &h)
	return h
}

// ICMP decodes Payload as an ICMPHeader; meaningful for TransportICMP/ICMPv6.
func (t *Transport) ICMP() ICMPHeader {
	var h ICMPHeader
	decodeFrom(t.Payload[:binary.Size(h)], &h)
	return h
}

// SCTP decodes Payload as an SCTPHeader; only meaningful when Kind == TransportSCTP.
func (t *Transport) SCTP() SCTPHeader {
	var h SCTPHeader
	decodeFrom(t.Payload[:binary.Size(h)], &h)
	return h
}

// Unknown decodes Payload as an UnknownHeader; meaningful when Kind == TransportUnknown.
func (t *Transport) Unknown() UnknownHeader {
	var h UnknownHeader
	decodeFrom(t.Payload[:binary.Size(h)], &h)
	return h
}

// IPv4Payload is the network-layer payload for NetworkIPv4.
type IPv4Payload struct {
	Src       [4]byte
	Dst       [4]byte
	TTL       uint8
	Protocol  uint8
	_         [2]byte // padding
	Transport Transport
}

// IPv6Payload is the network-layer payload for NetworkIPv6. The largest
// network variant — its size sets networkPayloadLen.
type IPv6Payload struct {
	Src        [16]byte
	Dst        [16]byte
	HopLimit   uint8
	NextHeader uint8
	_          [6]byte // padding
	Transport  Transport
}

// ARPPayload is the network-layer payload for NetworkARP.
type ARPPayload struct {
	SenderHW [6]byte
	SenderIP [4]byte
	TargetHW [6]byte
	TargetIP [4]byte
	Op       uint16
	_        [6]byte // padding
}

// networkPayloadLen is sized to IPv6Payload, the largest network variant.
const networkPayloadLen = 68

// Network is a fixed-size union over the three network-layer variants,
// mirroring struct network in ../ebpf/programs/c/common.h.
type Network struct {
	Kind    NetworkKind
	_       [7]byte // pad Kind up to Payload's alignment
	Payload [networkPayloadLen]byte
}

// NewIPv4Network encodes v4 as a NetworkIPv4-tagged Network.
func NewIPv4Network(v4 IPv4Payload) Network { return newNetwork(NetworkIPv4, v4) }

// NewIPv6Network encodes v6 as a NetworkIPv6-tagged Network.
func NewIPv6Network(v6 IPv6Payload) Network { return newNetwork(NetworkIPv6, v6) }

// NewARPNetwork encodes arp as a NetworkARP-tagged Network.
func NewARPNetwork(arp ARPPayload) Network { return newNetwork(NetworkARP, arp) }

func newNetwork(kind NetworkKind, variant any) Network {
	var n Network
	n.Kind = kind
	encodeInto(n.Payload[:], variant)
	return n
}

// IPv4 decodes Payload as an IPv4Payload; only meaningful when Kind == NetworkIPv4.
func (n *Network) IPv4() IPv4Payload {
	var v IPv4Payload
	decodeFrom(n.Payload[:binary.Size(v)], &v)
	return v
}

// IPv6 decodes Payload as an IPv6Payload; only meaningful when Kind == NetworkIPv6.
func (n *Network) IPv6() IPv6Payload {
	var v IPv6Payload
	decodeFrom(n.Payload[:binary.Size(v)], &v)
	return v
}

// ARP decodes Payload as an ARPPayload; only meaningful when Kind == NetworkARP.
func (n *Network) ARP() ARPPayload {
	var v ARPPayload
	decodeFrom(n.Payload[:binary.Size(v)], &v)
	return v
}

// encodeInto little-endian encodes variant into dst. variant is always one
// of this package's fixed-width payload structs, so the write can never
// fail; an error here would mean a payload struct grew past its union's
// blob length, which is a build-time layout bug, not a runtime one.
func encodeInto(dst []byte, variant any) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, variant); err != nil {
		panic(fmt.Sprintf("wire: variant does not fit union payload: %v", err))
	}
	if buf.Len() > len(dst) {
		panic(fmt.Sprintf("wire: encoded variant (%d bytes) overflows union payload (%d bytes)", buf.Len(), len(dst)))
	}
	copy(dst, buf.Bytes())
}

func decodeFrom(src []byte, out any) {
	_ = binary.Read(bytes.NewReader(src), binary.LittleEndian, out)
}

// AppPacket is the record the classifier writes and the ring consumer reads.
// Size and field offsets must not drift between the kernel build and this
// struct — every field not applicable to the current variant is zeroed by
// the classifier, never left uninitialized.
type AppPacket struct {
	TimestampSec uint64
	Dir          Direction
	_            [3]byte
	Length       uint32 // total frame length in bytes, from skb->len
	PID          uint32 // 0 == unknown; only ever set for egress
	_            [4]byte
	Link         LinkHeader
	_            [6]byte // pad LinkHeader (14 bytes) ahead of the Net union
	Net          Network
}

// SetIPv4 tags Net as NetworkIPv4 and encodes v4 as its payload.
func (p *AppPacket) SetIPv4(v4 IPv4Payload) { p.Net = NewIPv4Network(v4) }

// SetIPv6 tags Net as NetworkIPv6 and encodes v6 as its payload.
func (p *AppPacket) SetIPv6(v6 IPv6Payload) { p.Net = NewIPv6Network(v6) }

// SetARP tags Net as NetworkARP and encodes arp as its payload.
func (p *AppPacket) SetARP(arp ARPPayload) { p.Net = NewARPNetwork(arp) }

// SrcIP renders the source address for the populated network variant, or nil
// if Net.Kind is NetworkNone.
func (p *AppPacket) SrcIP() net.IP {
	switch p.Net.Kind {
	case NetworkIPv4:
		v4 := p.Net.IPv4()
		return net.IP(v4.Src[:])
	case NetworkIPv6:
		v6 := p.Net.IPv6()
		return net.IP(v6.Src[:])
	case NetworkARP:
		arp := p.Net.ARP()
		return net.IP(arp.SenderIP[:])
	default:
		return nil
	}
}

// DstIP renders the destination address for the populated network variant.
func (p *AppPacket) DstIP() net.IP {
	switch p.Net.Kind {
	case NetworkIPv4:
		v4 := p.Net.IPv4()
		return net.IP(v4.Dst[:])
	case NetworkIPv6:
		v6 := p.Net.IPv6()
		return net.IP(v6.Dst[:])
	case NetworkARP:
		arp := p.Net.ARP()
		return net.IP(arp.TargetIP[:])
	default:
		return nil
	}
}

// Protocol returns the IANA protocol/next-header number carried in the
// populated network variant, or 0 for ARP/none.
func (p *AppPacket) Protocol() uint8 {
	switch p.Net.Kind {
	case NetworkIPv4:
		return p.Net.IPv4().Protocol
	case NetworkIPv6:
		return p.Net.IPv6().NextHeader
	default:
		return 0
	}
}

// Transport decodes and returns the populated transport variant, or nil for
// ARP/none. The returned value is a decode, not an alias into p's memory.
func (p *AppPacket) Transport() *Transport {
	switch p.Net.Kind {
	case NetworkIPv4:
		v4 := p.Net.IPv4()
		return &v4.Transport
	case NetworkIPv6:
		v6 := p.Net.IPv6()
		return &v6.Transport
	default:
		return nil
	}
}

// String renders a one-line summary, handy for export/debug.
func (p *AppPacket) String() string {
	src, dst := p.SrcIP(), p.DstIP()
	return fmt.Sprintf("%s %s->%s proto=%d", p.Dir, src, dst, p.Protocol())
}

// FilterState is the single-entry shared map gating which layers the
// classifier captures. A zero bitfield for a layer rejects all traffic of
// that layer.
type FilterState struct {
	TransportMask uint32
	NetworkMask   uint32
	LinkMask      uint32
	Direction     uint8 // bitmask of (1<<DirectionIngress)|(1<<DirectionEgress)
	_             [3]byte
}

// Transport filter bits (FILTERS.transport).
const (
	FilterTCP  uint32 = 1 << 0
	FilterUDP  uint32 = 1 << 1
	FilterICMP uint32 = 1 << 2
	FilterSCTP uint32 = 1 << 3
)

// Network/link filter bits (FILTERS.network / .link).
const (
	FilterIPv4 uint32 = 1 << 0
	FilterIPv6 uint32 = 1 << 1
	FilterARP  uint32 = 1 << 2
)

// Accepts reports whether this FilterState would let a packet with the given
// layer bits and direction through the classifier.
func (f *FilterState) Accepts(linkBit, networkOrTransportBit uint32, dir Direction) bool {
	if f.LinkMask&linkBit == 0 {
		return false
	}
	if networkOrTransportBit != 0 && f.TransportMask&networkOrTransportBit == 0 {
		return false
	}
	return f.Direction&(1<<uint8(dir)) != 0
}

// BlockMaskTriple is the value side of BLOCKLIST_IPV4/BLOCKLIST_IPV6: a
// merged OR of every enabled rule's port/protocol/direction masks for one IP.
type BlockMaskTriple struct {
	PortMask uint16 // 0 == all ports
	ProtoNum uint8  // 0 == all protocols
	DirMask  uint8  // bit 0 ingress, bit 1 egress
	_        [4]byte
}

// DirBit returns the bit for a BlockRule direction.
func DirBit(dir string) uint8 {
	switch dir {
	case "ingress":
		return 1 << 0
	case "egress":
		return 1 << 1
	default: // "both"
		return 1<<0 | 1<<1
	}
}
