package term

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styles used by the terminal client. Colors are dropped automatically
// when out is not a terminal.
type Theme struct {
	renderer *lipgloss.Renderer

	accent lipgloss.TerminalColor
	muted  lipgloss.TerminalColor
	error  lipgloss.TerminalColor
	brand  lipgloss.TerminalColor

	base lipgloss.Style
}

// NewTheme builds the theme for out. dark selects the palette for dark terminals.
func NewTheme(out io.Writer, dark bool) Theme {
	r := lipgloss.NewRenderer(out)
	t := Theme{
		renderer: r,
		accent:   lipgloss.AdaptiveColor{Light: "#0B7285", Dark: "#66D9E8"},
		muted:    lipgloss.AdaptiveColor{Light: "#868E96", Dark: "#909296"},
		error:    lipgloss.AdaptiveColor{Light: "#C92A2A", Dark: "#FF8787"},
		brand:    lipgloss.Color("#7950F2"),
		base:     r.NewStyle(),
	}
	r.SetHasDarkBackground(dark)
	return t
}

func (t Theme) Base() lipgloss.Style {
	return t.base
}

func (t Theme) Author(own bool) lipgloss.Style {
	if own {
		return t.Base().Bold(true).Foreground(t.brand)
	}
	return t.Base().Bold(true).Foreground(t.accent)
}

func (t Theme) Muted() lipgloss.Style {
	return t.Base().Foreground(t.muted)
}

func (t Theme) Error() lipgloss.Style {
	return t.Base().Foreground(t.error)
}

func (t Theme) Header() lipgloss.Style {
	return t.Base().Bold(true).Foreground(t.brand)
}

func (t Theme) Notice() lipgloss.Style {
	return t.Base().Italic(true).Foreground(t.accent)
}
