// Package themes holds the lipgloss styles shared by the review screens.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Selected      lipgloss.Style
	RoundedBox    lipgloss.Style
	CategoryIcon  lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style
	StatusInfo    lipgloss.Style
	ProgressFull  lipgloss.Style
	ProgressEmpty lipgloss.Style
	Primary       lipgloss.Color
	Muted         lipgloss.Color
	Border        lipgloss.Color
}

// Default is the default theme.
var Default = Theme{
	Primary: lipgloss.Color("#0d9488"),
	Muted:   lipgloss.Color("#78716c"),
	Border:  lipgloss.Color("#44403c"),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#f5f5f4")).
		MarginBottom(1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a8a29e")),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f5f5f4")),
	Bold: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#f5f5f4")),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#0d9488")).
		Foreground(lipgloss.Color("#f5f5f4")).
		Bold(true),

	RoundedBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#44403c")).
		Padding(1, 2),
	ProgressFull: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#0d9488")),
	ProgressEmpty: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#44403c")),

	StatusSuccess: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10b981")).
		Bold(true),
	StatusWarning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f59e0b")).
		Bold(true),
	StatusError: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ef4444")).
		Bold(true),
	StatusInfo: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3b82f6")).
		Bold(true),

	CategoryIcon: lipgloss.NewStyle().
		Width(3).
		Align(lipgloss.Center),
}

// Plain is a theme without colors, used for golden output and dumb terminals.
var Plain = Theme{
	Title:         lipgloss.NewStyle().Bold(true).MarginBottom(1),
	Subtitle:      lipgloss.NewStyle(),
	Normal:        lipgloss.NewStyle(),
	Bold:          lipgloss.NewStyle().Bold(true),
	Selected:      lipgloss.NewStyle().Reverse(true),
	RoundedBox:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2),
	CategoryIcon:  lipgloss.NewStyle().Width(3).Align(lipgloss.Center),
	StatusSuccess: lipgloss.NewStyle(),
	StatusWarning: lipgloss.NewStyle(),
	StatusError:   lipgloss.NewStyle(),
	StatusInfo:    lipgloss.NewStyle(),
	ProgressFull:  lipgloss.NewStyle(),
	ProgressEmpty: lipgloss.NewStyle(),
}
