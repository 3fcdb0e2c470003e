// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorDeep = lipgloss.Color("62")
	ColorIce  = lipgloss.Color("15")
	ColorGood = lipgloss.Color("42")
	ColorWarn = lipgloss.Color("214")
	ColorBad  = lipgloss.Color("196")
	ColorDim  = lipgloss.Color("240")
)

var (
	StyleApp = lipgloss.NewStyle().Padding(0, 1)

	StyleTopBar = lipgloss.NewStyle().
			Background(ColorDeep).
			Foreground(ColorIce).
			Padding(0, 1)

	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(ColorIce)

	StyleSubtitle = lipgloss.NewStyle().Foreground(ColorDim)

	StyleMenuItem = lipgloss.NewStyle().Padding(0, 1)

	StyleMenuItemActive = lipgloss.NewStyle().
				Padding(0, 1).
				Bold(true).
				Underline(true)

	StyleMenuKey = lipgloss.NewStyle().Foreground(ColorDim)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDeep).
			Padding(0, 1).
			Margin(0, 1, 1, 0)

	StyleStatusGood = lipgloss.NewStyle().Foreground(ColorGood).Bold(true)
	StyleStatusWarn = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
	StyleStatusBad  = lipgloss.NewStyle().Foreground(ColorBad).Bold(true)
)

func progressBar(percent float64) string {
	const w = 20
	filled := int(float64(w) * percent)
	if filled < 0 {
		filled = 0
	}
	if filled > w {
		filled = w
	}
	bar := ""
	for i := 0; i < w; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return "[" + bar + "]"
}
