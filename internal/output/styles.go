package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette, keyed by execution status.
var (
	ColorSuccess = lipgloss.Color("#04B575")
	ColorWarn    = lipgloss.Color("#FFB800")
	ColorFail    = lipgloss.Color("#FF4040")
	ColorInfo    = lipgloss.Color("#00BFFF")
	ColorMuted   = lipgloss.Color("#666666")
	ColorLabel   = lipgloss.Color("#AAAAAA")
)

func box(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

func emphasis(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

// Box styles
var (
	BoxStyle        = box(ColorInfo)
	SuccessBoxStyle = box(ColorSuccess)
	WarnBoxStyle    = box(ColorWarn)
	FailBoxStyle    = box(ColorFail)
)

// Text styles
var (
	TitleStyle = emphasis(ColorInfo)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorLabel).
			Width(18)

	ValueStyle = lipgloss.NewStyle()

	SuccessText = emphasis(ColorSuccess)
	WarnText    = emphasis(ColorWarn)
	FailText    = emphasis(ColorFail)
	MutedText   = lipgloss.NewStyle().Foreground(ColorMuted)

	// CodeStyle renders SQL text: the statement and its rollback.
	CodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0"))
)

// Status indicators
const (
	IconSuccess = "✅"
	IconWarn    = "⚠"
	IconFail    = "❌"
	IconLock    = "🔒"
)
