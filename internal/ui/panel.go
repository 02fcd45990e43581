package ui

import (
	"strings"

	"jobwatch/internal/progress"
)

// Gradient selects the progress bar palette.
type Gradient string

const (
	GradientProgress Gradient = "progress"
	GradientSuccess  Gradient = "success"
	GradientError    Gradient = "error"
)

// Badge is the colored status pill of a panel.
type Badge struct {
	Text  string
	Color string // hex, e.g. "#2196f3"
}

// Detail is one labelled counter of the details grid.
type Detail struct {
	Label string
	Value string
	Unit  string
}

// PanelState is everything a container needs to draw one job panel.
type PanelState struct {
	ID      string
	Icon    string
	Title   string
	Badge   Badge
	Percent float64 // bar fill, 0..100
	Label   string  // text shown next to the bar
	Bar     Gradient

	// Details is nil when the details grid is disabled.
	Details []Detail

	// Message and Note form the stats line; both empty when stats are disabled.
	Message string
	Note    string

	Terminal bool
}

func (p PanelState) clone() PanelState {
	if p.Details != nil {
		p.Details = append([]Detail(nil), p.Details...)
	}
	return p
}

// DetailValue returns the value of the detail with label, or "".
func (p PanelState) DetailValue(label string) string {
	for _, d := range p.Details {
		if d.Label == label {
			return d.Value
		}
	}
	return ""
}

// Line renders the panel as a single line of plain text.
func (p PanelState) Line() string {
	parts := []string{
		"[" + p.ID + "] " + p.Icon + " " + p.Title,
		p.Badge.Text,
		p.Label,
	}
	if len(p.Details) > 0 {
		ds := make([]string, 0, len(p.Details))
		for _, d := range p.Details {
			s := d.Label + ": " + d.Value
			if d.Unit != "" {
				s += " " + d.Unit
			}
			ds = append(ds, s)
		}
		parts = append(parts, strings.Join(ds, ", "))
	}
	for _, s := range []string{p.Message, p.Note} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}

// Container is a render surface for one panel.
type Container interface {
	Render(PanelState)
	Hide()
	Clear()
}

// Outcome is how a watched job ended, as far as the binder knows.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeStopped:
		return "stopped"
	default:
		return "running"
	}
}

// StatusDisplay is the badge label, color and header icon of a job status.
type StatusDisplay struct {
	Label string
	Color string
	Icon  string
}

const (
	colorPending = "#ffc107"
	colorRunning = "#2196f3"
	colorSuccess = "#4caf50"
	colorError   = "#f44336"
)

var statusDisplays = map[progress.Status]StatusDisplay{
	progress.StatusPending:    {Label: "En attente", Color: colorPending, Icon: "⏳"},
	progress.StatusInProgress: {Label: "En cours", Color: colorRunning, Icon: "🚀"},
	progress.StatusCompleted:  {Label: "Terminé", Color: colorSuccess, Icon: "✅"},
	progress.StatusFailed:     {Label: "Échoué", Color: colorError, Icon: "❌"},
}

// DisplayFor returns how status is shown. Unknown statuses display as pending.
func DisplayFor(status progress.Status) StatusDisplay {
	if d, ok := statusDisplays[status]; ok {
		return d
	}
	return statusDisplays[progress.StatusPending]
}
