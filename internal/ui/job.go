package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
)

const barWidth = 40

// panelView is the host-side state of one job panel.
type panelView struct {
	id       string
	state    PanelState
	rendered bool
	hidden   bool
	released bool

	spinner spinner.Model
	bars    map[Gradient]bubblesprogress.Model
}

func newPanelView(id string, styles Styles) *panelView {
	sp := spinner.New()
	sp.Style = styles.Spinner
	return &panelView{
		id:      id,
		spinner: sp,
		bars: map[Gradient]bubblesprogress.Model{
			GradientProgress: bubblesprogress.New(
				bubblesprogress.WithDefaultGradient(),
				bubblesprogress.WithWidth(barWidth),
				bubblesprogress.WithoutPercentage(),
			),
			GradientSuccess: bubblesprogress.New(
				bubblesprogress.WithGradient("#4caf50", "#66bb6a"),
				bubblesprogress.WithWidth(barWidth),
				bubblesprogress.WithoutPercentage(),
			),
			GradientError: bubblesprogress.New(
				bubblesprogress.WithGradient("#f44336", "#e57373"),
				bubblesprogress.WithWidth(barWidth),
				bubblesprogress.WithoutPercentage(),
			),
		},
	}
}

func (pv *panelView) bar() bubblesprogress.Model {
	if b, ok := pv.bars[pv.state.Bar]; ok {
		return b
	}
	return pv.bars[GradientProgress]
}

// settled reports whether the host no longer waits on this panel.
func (pv *panelView) settled() bool {
	return pv.released
}
