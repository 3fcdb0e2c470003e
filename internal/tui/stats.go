// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oryxhq/oryx/internal/alert"
	"github.com/oryxhq/oryx/internal/stats"
)

// StatsModel renders the statistics aggregator's current snapshot: per-layer
// protocol counters, top-10 sources/destinations/hosts, and the
// SYN-flood alert banner with its per-source breakdown.
type StatsModel struct {
	Backend   Backend
	Snapshot  stats.Snapshot
	Alert     *alert.Alert
	Offenders []alert.SourceCount
	Width     int
	Height    int
}

func NewStatsModel(backend Backend) StatsModel {
	return StatsModel{Backend: backend}
}

func (m StatsModel) Init() tea.Cmd { return nil }

func (m StatsModel) Update(msg tea.Msg) (StatsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		m.Snapshot = m.Backend.Stats()
		m.Alert = m.Backend.ActiveAlert()
		m.Offenders = m.Backend.TopOffenders()
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	}
	return m, nil
}

func (m StatsModel) View() string {
	proto := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Protocol Counters"),
		protocolTable("Link", m.Snapshot.Link),
		protocolTable("Network", m.Snapshot.Network),
		protocolTable("Transport", m.Snapshot.Transport),
	))

	sources := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Top Sources"),
		entryTable(m.Snapshot.TopSources),
	))

	dests := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Top Destinations"),
		entryTable(m.Snapshot.TopDests),
	))

	hosts := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Top Visited Hosts"),
		entryTable(m.Snapshot.TopHosts),
	))

	top := lipgloss.JoinHorizontal(lipgloss.Top, sources, dests)
	sections := []string{proto, top, hosts}
	if banner := m.alertBanner(); banner != "" {
		sections = append([]string{banner}, sections...)
	}
	sections = append(sections, StyleSubtitle.Render(fmt.Sprintf("%d packets observed", m.Snapshot.TotalPacket)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// alertBanner renders the active SynFlood alert with its SYN ratio and
// top-offender breakdown, or "" when the window is quiet.
func (m StatsModel) alertBanner() string {
	if m.Alert == nil {
		return ""
	}
	lines := []string{
		StyleStatusBad.Render("SYN FLOOD") + "  " +
			fmt.Sprintf("%s %.0f%% SYN since %s",
				progressBar(m.Alert.ObservedRatio),
				m.Alert.ObservedRatio*100,
				m.Alert.Since.Format("15:04:05")),
	}
	for i, o := range m.Offenders {
		if i >= 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("  %-22s %d SYN", o.Source, o.Count))
	}
	return StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func protocolTable(label string, counters map[string]stats.ProtocolCounters) string {
	if len(counters) == 0 {
		return fmt.Sprintf("%s: (none)", label)
	}
	line := label + ": "
	first := true
	for name, c := range counters {
		if !first {
			line += "  "
		}
		first = false
		line += fmt.Sprintf("%s=%d pkts/%d B", name, c.Packets, c.Bytes)
	}
	return line
}

func entryTable(entries []stats.Entry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	var out string
	for i, e := range entries {
		out += fmt.Sprintf("%2d. %-22s %d\n", i+1, e.Key, e.Count)
	}
	return out
}
