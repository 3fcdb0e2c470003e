// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/oryxhq/oryx/internal/firewall"
)

// FirewallModel lists BlockRules and drives a declarative huh.Form for
// adding new ones.
type FirewallModel struct {
	Backend Backend
	Table   table.Model
	Rules   []firewall.Rule

	form      *huh.Form
	editing   bool
	editingID string // "" while adding a new rule
	draft     ruleDraft
	Width     int
	Height    int
}

type ruleDraft struct {
	IP        string
	Port      string
	Protocol  string
	Direction string
}

func NewFirewallModel(backend Backend) FirewallModel {
	columns := []table.Column{
		{Title: "Enabled", Width: 8},
		{Title: "Address", Width: 18},
		{Title: "Port", Width: 6},
		{Title: "Protocol", Width: 10},
		{Title: "Direction", Width: 10},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(10))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(ColorDeep).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(ColorIce).Background(ColorDeep)
	t.SetStyles(s)

	return FirewallModel{Backend: backend, Table: t}
}

func (m FirewallModel) Init() tea.Cmd { return nil }

// Editing reports whether the add-rule form currently owns key input.
func (m FirewallModel) Editing() bool { return m.editing }

func (m FirewallModel) Update(msg tea.Msg) (FirewallModel, tea.Cmd) {
	if m.editing && m.form != nil {
		f, cmd := m.form.Update(msg)
		if form, ok := f.(*huh.Form); ok {
			m.form = form
		}
		if m.form.State == huh.StateCompleted {
			m.editing = false
			id := m.editingID
			rule := firewall.Rule{
				IP:        m.draft.IP,
				Protocol:  m.draft.Protocol,
				Direction: firewall.Direction(m.draft.Direction),
				Enabled:   id == "", // new rules arm immediately; edited ones stay disabled
			}
			if port, err := strconv.ParseUint(m.draft.Port, 10, 16); err == nil {
				rule.Port = uint16(port)
			}
			return m, func() tea.Msg {
				if id != "" {
					if err := m.Backend.EditRule(id, rule); err != nil {
						return BackendError{Err: err}
					}
					return nil
				}
				if _, err := m.Backend.AddRule(rule); err != nil {
					return BackendError{Err: err}
				}
				return nil
			}
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case TickMsg:
		m.Rules = m.Backend.FirewallRules()
		m.rebuildRows()

	case tea.KeyMsg:
		switch msg.String() {
		case "n":
			m.startForm(nil)
			return m, m.form.Init()
		case "e":
			idx := m.Table.Cursor()
			if idx >= 0 && idx < len(m.Rules) {
				r := m.Rules[idx]
				if r.Enabled {
					return m, func() tea.Msg {
						return BackendError{Err: fmt.Errorf("can not edit enabled rule")}
					}
				}
				m.startForm(&r)
				return m, m.form.Init()
			}
		case "s":
			return m, func() tea.Msg {
				path, err := m.Backend.SaveRules()
				if err != nil {
					return BackendError{Err: err}
				}
				return noticeMsg("rules saved to " + path)
			}
		case " ":
			idx := m.Table.Cursor()
			if idx >= 0 && idx < len(m.Rules) {
				id := m.Rules[idx].ID
				return m, func() tea.Msg {
					if err := m.Backend.ToggleRule(id); err != nil {
						return BackendError{Err: err}
					}
					return nil
				}
			}
		case "d":
			idx := m.Table.Cursor()
			if idx >= 0 && idx < len(m.Rules) {
				id := m.Rules[idx].ID
				return m, func() tea.Msg {
					if err := m.Backend.DeleteRule(id); err != nil {
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

// startForm opens the rule form; existing != nil prefills it for an edit.
func (m *FirewallModel) startForm(existing *firewall.Rule) {
	m.editingID = ""
	m.draft = ruleDraft{Protocol: "tcp", Direction: "both"}
	if existing != nil {
		m.editingID = existing.ID
		m.draft = ruleDraft{
			IP:        existing.IP,
			Protocol:  existing.Protocol,
			Direction: string(existing.Direction),
		}
		if existing.Port != 0 {
			m.draft.Port = fmt.Sprintf("%d", existing.Port)
		}
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Address").Value(&m.draft.IP),
			huh.NewInput().Title("Port (0 = any)").Value(&m.draft.Port),
			huh.NewSelect[string]().Title("Protocol").
				Options(
					huh.NewOption("tcp", "tcp"),
					huh.NewOption("udp", "udp"),
					huh.NewOption("icmp", "icmp"),
					huh.NewOption("sctp", "sctp"),
				).
				Value(&m.draft.Protocol),
			huh.NewSelect[string]().Title("Direction").
				Options(
					huh.NewOption("both", "both"),
					huh.NewOption("ingress", "ingress"),
					huh.NewOption("egress", "egress"),
				).
				Value(&m.draft.Direction),
		),
	).WithTheme(huh.ThemeBase16())
	m.editing = true
}

func (m *FirewallModel) rebuildRows() {
	var rows []table.Row
	for _, r := range m.Rules {
		enabled := "no"
		if r.Enabled {
			enabled = "yes"
		}
		port := "any"
		if r.Port != 0 {
			port = fmt.Sprintf("%d", r.Port)
		}
		rows = append(rows, table.Row{enabled, r.IP, port, r.Protocol, string(r.Direction)})
	}
	m.Table.SetRows(rows)
}

func (m FirewallModel) View() string {
	if m.editing && m.form != nil {
		return StyleCard.Render(m.form.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Firewall")+"  "+StyleSubtitle.Render("(n: new, e: edit, space: toggle, d: delete, s: save)"),
		StyleCard.Render(m.Table.View()),
	)
}
