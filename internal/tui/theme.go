package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin palettes — true-color hex values.
// https://catppuccin.com/palette

// Palette is the semantic color set a theme provides.
type Palette struct {
	Text    lipgloss.Color
	Subtext lipgloss.Color
	Overlay lipgloss.Color
	Surface lipgloss.Color
	Base    lipgloss.Color

	Accent  lipgloss.Color
	Focus   lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Info    lipgloss.Color
}

// mocha is the dark palette.
var mocha = Palette{
	Text:    "#cdd6f4",
	Subtext: "#a6adc8",
	Overlay: "#6c7086",
	Surface: "#313244",
	Base:    "#1e1e2e",
	Accent:  "#cba6f7",
	Focus:   "#b4befe",
	Success: "#a6e3a1",
	Error:   "#f38ba8",
	Warning: "#f9e2af",
	Info:    "#94e2d5",
}

// latte is the light palette.
var latte = Palette{
	Text:    "#4c4f69",
	Subtext: "#6c6f85",
	Overlay: "#9ca0b0",
	Surface: "#ccd0da",
	Base:    "#eff1f5",
	Accent:  "#8839ef",
	Focus:   "#7287fd",
	Success: "#40a02b",
	Error:   "#d20f39",
	Warning: "#df8e1d",
	Info:    "#179299",
}

// Styles is the rendered style set for one theme.
type Styles struct {
	Name string

	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style
	Selected  lipgloss.Style
	Badge     lipgloss.Style
	Box       lipgloss.Style
	Modal     lipgloss.Style
	Help      lipgloss.Style
	UserMsg   lipgloss.Style
	AiMsg     lipgloss.Style
	ErrMsg    lipgloss.Style
	Unsupport lipgloss.Style
}

// ThemeByName maps a persisted preference onto a style set. Unknown values
// fall back to dark.
func ThemeByName(name string) Styles {
	if name == "light" {
		return buildStyles("light", latte)
	}
	return buildStyles("dark", mocha)
}

func buildStyles(name string, p Palette) Styles {
	return Styles{
		Name:      name,
		Title:     lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Subtitle:  lipgloss.NewStyle().Foreground(p.Subtext),
		Status:    lipgloss.NewStyle().Foreground(p.Info),
		Error:     lipgloss.NewStyle().Foreground(p.Error),
		Success:   lipgloss.NewStyle().Foreground(p.Success),
		Muted:     lipgloss.NewStyle().Foreground(p.Overlay),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(p.Focus),
		Badge:     lipgloss.NewStyle().Foreground(p.Base).Background(p.Accent).Padding(0, 1),
		Box:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Surface).Padding(0, 1),
		Modal:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Accent).Padding(0, 1),
		Help:      lipgloss.NewStyle().Foreground(p.Overlay),
		UserMsg:   lipgloss.NewStyle().Foreground(p.Text),
		AiMsg:     lipgloss.NewStyle().Foreground(p.Info),
		ErrMsg:    lipgloss.NewStyle().Foreground(p.Error).Italic(true),
		Unsupport: lipgloss.NewStyle().Foreground(p.Warning).Italic(true),
	}
}
