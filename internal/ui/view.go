package ui

import (
	"fmt"
	"strings"
)

func (m Model) viewHeader() string {
	done, total := 0, len(m.order)
	for _, id := range m.order {
		pv := m.panels[id]
		if pv.released || pv.state.Terminal {
			done++
		}
	}
	title := m.styles.Title.Render("jobwatch")
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Jobs: %d/%d done • q: quit", done, total))
	return title + "\n" + sub
}

func (m Model) viewPanels() string {
	var b strings.Builder
	for _, id := range m.order {
		pv := m.panels[id]
		if pv.hidden {
			continue
		}
		b.WriteString(m.viewPanel(pv))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewPanel(pv *panelView) string {
	if !pv.rendered {
		line := m.styles.PanelTitle.Render(pv.id)
		wait := m.styles.Spinner.Render(pv.spinner.View()) + " " + m.styles.Faint.Render("waiting")
		return m.styles.Box.Render(line + "\n" + wait)
	}
	s := pv.state

	header := fmt.Sprintf("%s %s  %s", s.Icon, m.styles.PanelTitle.Render(s.Title), m.styles.badge(s.Badge))
	if s.ID != "" {
		header += "  " + m.styles.Faint.Render(s.ID)
	}

	label := s.Label
	switch s.Bar {
	case GradientError:
		label = m.styles.Error.Render(label)
	case GradientSuccess:
		label = m.styles.Success.Render(label)
	}
	bar := pv.bar().ViewAs(s.Percent/100.0) + " " + label
	if !s.Terminal {
		bar = m.styles.Spinner.Render(pv.spinner.View()) + " " + bar
	}

	lines := []string{header, bar}
	if len(s.Details) > 0 {
		ds := make([]string, 0, len(s.Details))
		for _, d := range s.Details {
			v := d.Value
			if d.Unit != "" {
				v += " " + d.Unit
			}
			ds = append(ds, m.styles.Label.Render(d.Label+":")+" "+v)
		}
		lines = append(lines, strings.Join(ds, "   "))
	}
	if s.Message != "" || s.Note != "" {
		stats := m.styles.Info.Render(s.Message)
		if s.Note != "" {
			stats += "   " + m.styles.Faint.Render(s.Note)
		}
		lines = append(lines, stats)
	}
	return m.styles.Box.Render(strings.Join(lines, "\n"))
}
