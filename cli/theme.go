package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Kanagawa palette, dark and light variants.
const (
	darkGreen  = "#98BB6C"
	darkYellow = "#FF9E3B"
	darkRed    = "#FF5D62"
	darkOrange = "#FFA066"
	darkCyan   = "#7E9CD8"
	darkBlue   = "#7FB4CA"
	darkViolet = "#957FB8"

	lightGreen  = "#4E7C5A"
	lightYellow = "#A68A64"
	lightRed    = "#C34043"
	lightOrange = "#CC6B4E"
	lightCyan   = "#5B8BBE"
	lightBlue   = "#4F7CAC"
	lightViolet = "#674D7A"
)

// Colors is the palette used by command output.
type Colors struct {
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Red    lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor
}

// Theme bundles the styles shared by help output, the progress spinner and
// command results.
type Theme struct {
	Colors Colors

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
}

// DefaultTheme is the theme used by every marksync command.
var DefaultTheme = newTheme(os.Getenv("MARKSYNC_THEME"))

func newTheme(name string) *Theme {
	var c Colors
	if strings.EqualFold(strings.TrimSpace(name), "terminal") {
		c = Colors{
			Green:  lipgloss.Color("2"),
			Yellow: lipgloss.Color("3"),
			Red:    lipgloss.Color("1"),
			Orange: lipgloss.Color("208"),
			Cyan:   lipgloss.Color("6"),
			Blue:   lipgloss.Color("4"),
			Violet: lipgloss.Color("5"),
		}
	} else {
		c = Colors{
			Green:  lipgloss.AdaptiveColor{Light: lightGreen, Dark: darkGreen},
			Yellow: lipgloss.AdaptiveColor{Light: lightYellow, Dark: darkYellow},
			Red:    lipgloss.AdaptiveColor{Light: lightRed, Dark: darkRed},
			Orange: lipgloss.AdaptiveColor{Light: lightOrange, Dark: darkOrange},
			Cyan:   lipgloss.AdaptiveColor{Light: lightCyan, Dark: darkCyan},
			Blue:   lipgloss.AdaptiveColor{Light: lightBlue, Dark: darkBlue},
			Violet: lipgloss.AdaptiveColor{Light: lightViolet, Dark: darkViolet},
		}
	}

	return &Theme{
		Colors:  c,
		Success: lipgloss.NewStyle().Foreground(c.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(c.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(c.Cyan).Bold(true),
		Bold:    lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Faint(true),
		Italic:  lipgloss.NewStyle().Italic(true),
	}
}

// InitializeTerminal honors CLICOLOR_FORCE and COLORTERM so styled output
// survives pipes in CI. It has no effect when neither is set.
func InitializeTerminal() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
