// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"fmt"
	"net"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/oryxhq/oryx/internal/wire"
)

// packetLimit bounds how many recent packets the inspector keeps in memory.
const packetLimit = 500

// PacketsModel is the packet inspector: a scrolling table of recently
// captured packets, fuzzy-filterable by source/destination/protocol text.
type PacketsModel struct {
	Backend Backend
	Table   table.Model
	Search  textinput.Model
	all     []wire.AppPacket
	lines   []string
	Width   int
	Height  int
}

func NewPacketsModel(backend Backend) PacketsModel {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Dir", Width: 4},
		{Title: "Proto", Width: 6},
		{Title: "Source", Width: 22},
		{Title: "Destination", Width: 22},
		{Title: "Len", Width: 6},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(16))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(ColorDeep).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(ColorIce).Background(ColorDeep)
	t.SetStyles(s)

	search := textinput.New()
	search.Placeholder = "fuzzy search (e.g. 443, tcp, 10.0.0)"
	search.CharLimit = 128

	return PacketsModel{Backend: backend, Table: t, Search: search}
}

func (m PacketsModel) Init() tea.Cmd {
	return nil
}

func (m PacketsModel) Update(msg tea.Msg) (PacketsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		m.all = m.Backend.Packets(packetLimit)
		m.rebuildLines()
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		if m.Search.Focused() {
			switch msg.String() {
			case "esc":
				m.Search.SetValue("")
				m.Search.Blur()
				m.applyFilter()
				return m, nil
			case "enter":
				m.Search.Blur()
				m.applyFilter()
				return m, nil
			}
			var cmd tea.Cmd
			m.Search, cmd = m.Search.Update(msg)
			m.applyFilter()
			return m, cmd
		}
		switch msg.String() {
		case "/":
			m.Search.Focus()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		if msg.Height > 10 {
			m.Table.SetHeight(msg.Height - 8)
		}
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m *PacketsModel) rebuildLines() {
	m.lines = make([]string, len(m.all))
	for i, pkt := range m.all {
		m.lines[i] = packetSearchLine(pkt)
	}
}

func (m *PacketsModel) applyFilter() {
	query := strings.TrimSpace(m.Search.Value())
	var rows []table.Row
	var matched []wire.AppPacket

	if query == "" {
		matched = m.all
	} else {
		for _, match := range fuzzy.Find(query, m.lines) {
			matched = append(matched, m.all[match.Index])
		}
	}

	for _, pkt := range matched {
		src, dst := pkt.SrcIP(), pkt.DstIP()
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", pkt.TimestampSec%100000),
			pkt.Dir.String(),
			protoName(pkt.Protocol()),
			ipPort(src, pkt.Transport(), true),
			ipPort(dst, pkt.Transport(), false),
			fmt.Sprintf("%d", pkt.Length),
		})
	}
	m.Table.SetRows(rows)
}

func packetSearchLine(pkt wire.AppPacket) string {
	src, dst, t := pkt.SrcIP(), pkt.DstIP(), pkt.Transport()
	return strings.ToLower(fmt.Sprintf("%s %s %s %s %s",
		pkt.Dir, protoName(pkt.Protocol()), ipPort(src, t, true), ipPort(dst, t, false), flagsString(pkt)))
}

func flagsString(pkt wire.AppPacket) string {
	t := pkt.Transport()
	if t == nil || t.Kind != wire.TransportTCP {
		return ""
	}
	var s string
	flags := t.TCP().Flags
	add := func(bit uint8, ch string) {
		if flags&bit != 0 {
			s += ch
		}
	}
	add(wire.TCPFlagSYN, "syn")
	add(wire.TCPFlagACK, "ack")
	add(wire.TCPFlagFIN, "fin")
	add(wire.TCPFlagRST, "rst")
	return s
}

func ipPort(ip net.IP, t *wire.Transport, source bool) string {
	port := uint16(0)
	if t != nil {
		switch t.Kind {
		case wire.TransportTCP:
			port = t.TCP().DPort
			if source {
				port = t.TCP().SPort
			}
		case wire.TransportUDP:
			port = t.UDP().DPort
			if source {
				port = t.UDP().SPort
			}
		}
	}
	if ip == nil {
		return "-"
	}
	if port == 0 {
		return ip.String()
	}
	return fmt.Sprintf("%s:%d", ip.String(), port)
}

func ipString2(ip net.IP) string {
	if ip == nil {
		return "-"
	}
	return ip.String()
}

func protoName(proto uint8) string {
	switch proto {
	case 6:
		return "tcp"
	case 17:
		return "udp"
	case 1, 58:
		return "icmp"
	case 132:
		return "sctp"
	default:
		return fmt.Sprintf("%d", proto)
	}
}

func (m PacketsModel) View() string {
	header := StyleTitle.Render("Packet Inspector") + "  " + StyleSubtitle.Render("(/: search, esc: clear)")
	search := m.Search.View()
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		search,
		StyleCard.Render(m.Table.View()),
		StyleSubtitle.Render(fmt.Sprintf("%d packets shown", len(m.Table.Rows()))),
	)
}
