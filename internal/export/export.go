// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package export implements the Export Writer: on command, appends a
// snapshot of recently captured packets to ~/oryx/capture as tab-separated
// text.
package export

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/oryxhq/oryx/internal/wire"
)

// DefaultPath is ~/oryx/capture.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "oryx", "capture"), nil
}

// Writer appends AppPacket snapshots to a capture file.
type Writer struct {
	path string
}

// New creates a Writer for path; pass "" for DefaultPath().
func New(path string) (*Writer, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Writer{path: path}, nil
}

// Export appends one line per packet to the capture file, in column order
// TIMESTAMP\tDIR\tPID\tSRC_MAC\tDST_MAC\tETH\tSRC_IP\tDST_IP\tPROTO\tSPORT\tDPORT\tFLAGS\tLEN.
func (w *Writer) Export(packets []wire.AppPacket) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	for _, pkt := range packets {
		if _, err := buf.WriteString(formatLine(pkt)); err != nil {
			return fmt.Errorf("write capture line: %w", err)
		}
	}
	return buf.Flush()
}

func formatLine(pkt wire.AppPacket) string {
	src, dst := pkt.SrcIP(), pkt.DstIP()
	sport, dport, flags := transportFields(pkt.Transport())

	return fmt.Sprintf("%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%d\n",
		pkt.TimestampSec,
		pkt.Dir,
		pkt.PID,
		macString(pkt.Link.SrcMAC),
		macString(pkt.Link.DstMAC),
		ethertypeName(pkt.Link.EtherType),
		ipString(src),
		ipString(dst),
		pkt.Protocol(),
		sport,
		dport,
		flags,
		pkt.Length,
	)
}

func transportFields(t *wire.Transport) (sport, dport uint16, flags string) {
	if t == nil {
		return 0, 0, ""
	}
	switch t.Kind {
	case wire.TransportTCP:
		tcp := t.TCP()
		return tcp.SPort, tcp.DPort, tcpFlagString(tcp.Flags)
	case wire.TransportUDP:
		udp := t.UDP()
		return udp.SPort, udp.DPort, ""
	case wire.TransportSCTP:
		sctp := t.SCTP()
		return sctp.SPort, sctp.DPort, ""
	default:
		return 0, 0, ""
	}
}

func tcpFlagString(flags uint8) string {
	var s string
	add := func(bit uint8, ch string) {
		if flags&bit != 0 {
			s += ch
		}
	}
	add(wire.TCPFlagSYN, "S")
	add(wire.TCPFlagACK, "A")
	add(wire.TCPFlagFIN, "F")
	add(wire.TCPFlagRST, "R")
	add(wire.TCPFlagPSH, "P")
	add(wire.TCPFlagURG, "U")
	return s
}

func macString(mac [6]byte) string {
	return net.HardwareAddr(mac[:]).String()
}

func ipString(ip net.IP) string {
	if ip == nil {
		return "-"
	}
	return ip.String()
}

func ethertypeName(et uint16) string {
	switch wire.EtherType(et) {
	case wire.EtherTypeIPv4:
		return "ipv4"
	case wire.EtherTypeIPv6:
		return "ipv6"
	case wire.EtherTypeARP:
		return "arp"
	default:
		return fmt.Sprintf("0x%04x", et)
	}
}
