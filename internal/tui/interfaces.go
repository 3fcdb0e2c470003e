// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// InterfacesModel lists host interfaces, which one is attached, and a
// bandwidth sparkline per interface.
type InterfacesModel struct {
	Backend Backend
	Table   table.Model
	history map[string][]float64
	rows    []InterfaceInfo
	Width   int
	Height  int
}

func NewInterfacesModel(backend Backend) InterfacesModel {
	columns := []table.Column{
		{Title: "Interface", Width: 14},
		{Title: "Attached", Width: 10},
		{Title: "Rx", Width: 14},
		{Title: "Tx", Width: 14},
		{Title: "Trend", Width: 22},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(10))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(ColorDeep).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(ColorIce).Background(ColorDeep)
	t.SetStyles(s)

	return InterfacesModel{Backend: backend, Table: t, history: make(map[string][]float64)}
}

func (m InterfacesModel) Init() tea.Cmd { return nil }

func (m InterfacesModel) Update(msg tea.Msg) (InterfacesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		infos, err := m.Backend.Interfaces()
		if err != nil {
			return m, nil
		}
		m.rows = infos
		m.recordHistory()
		m.rebuildRows()

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			idx := m.Table.Cursor()
			if idx >= 0 && idx < len(m.rows) {
				name := m.rows[idx].Name
				attached := m.rows[idx].Attached
				return m, func() tea.Msg {
					var err error
					if attached {
						err = m.Backend.Detach()
					} else {
						err = m.Backend.Attach(name)
					}
					if err != nil {
						return BackendError{Err: err}
					}
					return nil
				}
			}
		}

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m *InterfacesModel) recordHistory() {
	for _, info := range m.rows {
		h := m.history[info.Name]
		h = append(h, info.RxBytesSec+info.TxBytesSec)
		if len(h) > 40 {
			h = h[len(h)-40:]
		}
		m.history[info.Name] = h
	}
}

func (m *InterfacesModel) rebuildRows() {
	var rows []table.Row
	for _, info := range m.rows {
		attached := "no"
		if info.Attached {
			attached = "yes"
		}
		rows = append(rows, table.Row{
			info.Name,
			attached,
			formatBits(info.RxBytes),
			formatBits(info.TxBytes),
			sparkline(m.history[info.Name]),
		})
	}
	m.Table.SetRows(rows)
}

func (m InterfacesModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Interfaces")+"  "+StyleSubtitle.Render("(enter: attach/detach)"),
		StyleCard.Render(m.Table.View()),
	)
}

func formatBits(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func sparkline(data []float64) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{' ', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	max := 0.0
	for _, v := range data {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}
	var out []rune
	for _, v := range data {
		idx := int((v / max) * float64(len(chars)-1))
		out = append(out, chars[idx])
	}
	return string(out)
}
