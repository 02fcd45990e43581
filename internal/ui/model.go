package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the bubbletea model showing one panel per watched job.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	order  []string
	panels map[string]*panelView

	interrupted bool

	width, height int
	styles        Styles

	// Internal event channel fed by ProgramContainer
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, ids []string) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	panels := make(map[string]*panelView, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := panels[id]; dup {
			continue
		}
		panels[id] = newPanelView(id, sty)
		order = append(order, id)
	}

	return Model{
		ctx:     c,
		cancel:  cancel,
		order:   order,
		panels:  panels,
		styles:  sty,
		eventCh: make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.order {
		cmds = append(cmds, m.panels[id].spinner.Tick)
	}
	cmds = append(cmds, m.listenEventsCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// At most one read on eventCh is outstanding so container calls apply in order.
	relisten := false
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.interrupted = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case panelMsg:
		relisten = true
		if pv, ok := m.panels[msg.State.ID]; ok {
			pv.state = msg.State
			pv.rendered = true
			pv.hidden = false
		}
	case hideMsg:
		relisten = true
		if pv, ok := m.panels[msg.ID]; ok {
			pv.hidden = true
		}
	case clearMsg:
		relisten = true
		if pv, ok := m.panels[msg.ID]; ok {
			pv.hidden = true
			pv.released = true
		}
		if m.allSettled() {
			return m, tea.Quit
		}
	case releaseMsg:
		relisten = true
		if pv, ok := m.panels[msg.ID]; ok {
			pv.released = true
		}
		if m.allSettled() {
			return m, tea.Quit
		}
	case allDoneMsg:
		return m, tea.Quit
	}

	var cmds []tea.Cmd
	for _, id := range m.order {
		pv := m.panels[id]
		var c tea.Cmd
		pv.spinner, c = pv.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	if relisten {
		cmds = append(cmds, m.listenEventsCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	return m.viewHeader() + "\n\n" + m.viewPanels()
}

// Interrupted reports whether the user quit before every panel settled.
func (m Model) Interrupted() bool { return m.interrupted }

func (m Model) allSettled() bool {
	for _, id := range m.order {
		if !m.panels[id].settled() {
			return false
		}
	}
	return true
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return allDoneMsg{}
		case msg := <-m.eventCh:
			return msg
		}
	}
}

// teaReporter feeds container calls into the model's event channel.
type teaReporter struct {
	ctx context.Context
	ch  chan tea.Msg
}

// send blocks for critical messages and drops the rest when the channel is full.
func (r teaReporter) send(msg tea.Msg, critical bool) {
	if !critical {
		select {
		case r.ch <- msg:
		default:
		}
		return
	}
	select {
	case r.ch <- msg:
	case <-r.ctx.Done():
	}
}
