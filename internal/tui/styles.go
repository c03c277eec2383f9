package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/kvmswitch/internal/ui"
	"github.com/muurk/kvmswitch/internal/version"
)

// AppName is shown in the container header
const AppName = "KVMSWITCH"

// Layout constants
const (
	MinTerminalWidth = 40
	ButtonWidth      = 14
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor)

	ErrorLineStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true)

	// buttonBase is an input that is neither active nor focused
	buttonBase = lipgloss.NewStyle().
			Width(ButtonWidth).
			Align(lipgloss.Center).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.MutedColor).
			Foreground(ui.TextColor)

	// ActiveButtonStyle marks the input the switch reports as selected
	ActiveButtonStyle = buttonBase.
				BorderForeground(ui.SuccessColor).
				Foreground(ui.SuccessColor).
				Bold(true)

	// PendingButtonStyle marks an input whose selection has not been sent yet
	PendingButtonStyle = buttonBase.
				BorderForeground(ui.WarningColor).
				Foreground(ui.WarningColor)

	// FocusedButtonStyle marks the keyboard cursor
	FocusedButtonStyle = buttonBase.
				BorderForeground(ui.PrimaryColor).
				BorderStyle(lipgloss.ThickBorder())

	ButtonStyle = buttonBase
)

// buildHeaderContent creates the header line with app name and switch address
func buildHeaderContent(address string) string {
	left := lipgloss.NewStyle().
		Foreground(ui.TextColor).
		Bold(true).
		Render(AppName + " " + version.Short())

	right := lipgloss.NewStyle().
		Foreground(ui.MutedColor).
		Render(address)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// renderApplicationContainer wraps a screen with header, footer and border,
// filling the terminal.
func renderApplicationContainer(content, address, footerText string, width, height int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < 10 {
		height = 10
	}

	header := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		Render(buildHeaderContent(address))

	footer := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		Foreground(ui.MutedColor).
		Render(footerText)

	body := lipgloss.NewStyle().
		Width(width - 4).
		Padding(1, 1).
		Render(content)

	inner := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ui.PrimaryColor).
		Width(width - 2).
		MaxHeight(height).
		Render(inner)

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, bordered)
}
