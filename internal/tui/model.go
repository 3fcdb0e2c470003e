// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tui implements the interactive terminal interface:
// a packet inspector, a statistics view, a per-interface bandwidth/metrics
// explorer, and a declarative firewall editor.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oryxhq/oryx/internal/alert"
	"github.com/oryxhq/oryx/internal/diagnostics"
	"github.com/oryxhq/oryx/internal/firewall"
	"github.com/oryxhq/oryx/internal/stats"
	"github.com/oryxhq/oryx/internal/wire"
)

// View identifies the active screen.
type View int

const (
	ViewPackets View = iota
	ViewStats
	ViewInterfaces
	ViewFirewall
)

// InterfaceInfo is a snapshot of one interface's attach state and throughput.
type InterfaceInfo struct {
	Name       string
	Attached   bool
	RxBytes    uint64
	TxBytes    uint64
	RxBytesSec float64
	TxBytesSec float64
}

// Backend is the data and action surface the TUI drives; internal/app wires
// its process supervisor into this interface.
type Backend interface {
	Packets(limit int) []wire.AppPacket
	Stats() stats.Snapshot
	ResetStats()
	ActiveAlert() *alert.Alert
	TopOffenders() []alert.SourceCount
	Interfaces() ([]InterfaceInfo, error)
	Attach(name string) error
	Detach() error

	FirewallRules() []firewall.Rule
	AddRule(r firewall.Rule) (string, error)
	ToggleRule(id string) error
	EditRule(id string, r firewall.Rule) error
	DeleteRule(id string) error
	SaveRules() (string, error)

	Diagnostics() (tally map[string]uint64, recent []diagnostics.Notification)
	Export() (string, error)
}

// BackendError carries a failed action's error for display.
type BackendError struct{ Err error }

// TickMsg drives periodic refreshes.
type TickMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	Backend Backend

	ActiveView View
	Width      int
	Height     int
	Notice     string

	Packets    PacketsModel
	Stats      StatsModel
	Interfaces InterfacesModel
	Firewall   FirewallModel
}

// NewModel builds the initial application model.
func NewModel(backend Backend) Model {
	return Model{
		Backend:    backend,
		ActiveView: ViewPackets,
		Packets:    NewPacketsModel(backend),
		Stats:      NewStatsModel(backend),
		Interfaces: NewInterfacesModel(backend),
		Firewall:   NewFirewallModel(backend),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.Packets.Init(), m.Stats.Init(), m.Interfaces.Init(), m.Firewall.Init())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case BackendError:
		m.Notice = msg.Err.Error()

	case TickMsg:
		var cmd tea.Cmd
		m.Packets, cmd = m.Packets.Update(msg)
		cmds = append(cmds, cmd)
		m.Stats, cmd = m.Stats.Update(msg)
		cmds = append(cmds, cmd)
		m.Interfaces, cmd = m.Interfaces.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, m.tick())

	case tea.KeyMsg:
		if m.ActiveView == ViewFirewall && m.Firewall.Editing() {
			break // let the firewall form's key handling take over below
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.ActiveView = (m.ActiveView + 1) % 4
			return m, nil
		case "shift+tab":
			m.ActiveView = (m.ActiveView + 3) % 4
			return m, nil
		case "1":
			m.ActiveView = ViewPackets
			return m, nil
		case "2":
			m.ActiveView = ViewStats
			return m, nil
		case "3":
			m.ActiveView = ViewInterfaces
			return m, nil
		case "4":
			m.ActiveView = ViewFirewall
			return m, nil
		case "ctrl+s":
			return m, func() tea.Msg {
				path, err := m.Backend.Export()
				if err != nil {
					return BackendError{Err: err}
				}
				return noticeMsg("exported to " + path)
			}
		case "ctrl+r":
			m.Backend.ResetStats()
			return m, nil
		}

	case noticeMsg:
		m.Notice = string(msg)

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		var cmd tea.Cmd
		m.Packets, cmd = m.Packets.Update(msg)
		cmds = append(cmds, cmd)
		m.Stats, cmd = m.Stats.Update(msg)
		cmds = append(cmds, cmd)
		m.Interfaces, cmd = m.Interfaces.Update(msg)
		cmds = append(cmds, cmd)
		m.Firewall, cmd = m.Firewall.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	switch m.ActiveView {
	case ViewPackets:
		m.Packets, cmd = m.Packets.Update(msg)
	case ViewStats:
		m.Stats, cmd = m.Stats.Update(msg)
	case ViewInterfaces:
		m.Interfaces, cmd = m.Interfaces.Update(msg)
	case ViewFirewall:
		m.Firewall, cmd = m.Firewall.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

type noticeMsg string

func (m Model) View() string {
	doc := m.topBar() + "\n"
	switch m.ActiveView {
	case ViewPackets:
		doc += m.Packets.View()
	case ViewStats:
		doc += m.Stats.View()
	case ViewInterfaces:
		doc += m.Interfaces.View()
	case ViewFirewall:
		doc += m.Firewall.View()
	}
	if m.Notice != "" {
		doc += "\n" + StyleSubtitle.Render(m.Notice)
	}
	return StyleApp.Render(doc)
}

func (m Model) topBar() string {
	menus := []struct {
		View  View
		Label string
		Key   string
	}{
		{ViewPackets, "Packets", "1"},
		{ViewStats, "Stats", "2"},
		{ViewInterfaces, "Interfaces", "3"},
		{ViewFirewall, "Firewall", "4"},
	}

	var items []string
	for _, menu := range menus {
		key := StyleMenuKey.Render("[" + menu.Key + "]")
		if m.ActiveView == menu.View {
			items = append(items, StyleMenuItemActive.Render(key+" "+menu.Label))
		} else {
			items = append(items, StyleMenuItem.Render(key+" "+menu.Label))
		}
	}
	brand := StyleTitle.Render("ORYX ")
	bar := lipgloss.JoinHorizontal(lipgloss.Top, append([]string{brand}, items...)...)
	return StyleTopBar.Render(bar)
}
