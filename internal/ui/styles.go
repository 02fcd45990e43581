package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	PanelTitle lipgloss.Style
	Badge      lipgloss.Style
	Info       lipgloss.Style
	Label      lipgloss.Style
	Success    lipgloss.Style
	Error      lipgloss.Style
	Faint      lipgloss.Style
	Box        lipgloss.Style
	Spinner    lipgloss.Style
}

func defaultStyles() Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Title:      base.Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Subtitle:   base.Faint(true),
		PanelTitle: base.Bold(true).Foreground(lipgloss.Color("#D1D5DB")),
		Badge:      base.Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF")),
		Info:       base.Foreground(lipgloss.Color("#A3A3A3")),
		Label:      base.Bold(true),
		Success:    base.Foreground(lipgloss.Color(colorSuccess)),
		Error:      base.Foreground(lipgloss.Color(colorError)),
		Faint:      base.Faint(true),
		Box:        base.Padding(0, 1).MarginBottom(1),
		Spinner:    base.Foreground(lipgloss.Color("#22D3EE")),
	}
}

// badge renders b as a colored pill.
func (s Styles) badge(b Badge) string {
	st := s.Badge
	if b.Color != "" {
		st = st.Background(lipgloss.Color(b.Color))
	}
	return st.Render(b.Text)
}
