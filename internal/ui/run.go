package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Host runs the interactive view for a fixed set of job panels.
type Host struct {
	parent context.Context
	model  Model
	rep    teaReporter
	opts   []tea.ProgramOption
}

// NewHost prepares a host showing one panel per id, in order.
func NewHost(ctx context.Context, ids []string, opts ...tea.ProgramOption) *Host {
	m := NewModel(ctx, ids)
	return &Host{
		parent: ctx,
		model:  m,
		rep:    teaReporter{ctx: m.ctx, ch: m.eventCh},
		opts:   opts,
	}
}

// Panel returns the container drawing into the panel of id.
func (h *Host) Panel(id string) *ProgramContainer {
	return &ProgramContainer{id: id, rep: h.rep}
}

// Release tells the host it no longer needs to wait on id. The host quits
// once every panel has been released or cleared.
func (h *Host) Release(id string) {
	h.rep.send(releaseMsg{ID: id}, true)
}

// Run blocks until the host quits. It reports whether the user or the
// parent context interrupted it.
func (h *Host) Run() (interrupted bool, err error) {
	defer h.model.cancel()

	opts := append([]tea.ProgramOption{tea.WithContext(h.parent)}, h.opts...)
	final, err := tea.NewProgram(h.model, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("ui: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.Interrupted(), nil
	}
	return false, nil
}

// ProgramContainer forwards one panel's renders to a Host.
type ProgramContainer struct {
	id  string
	rep teaReporter
}

func (c *ProgramContainer) Render(s PanelState) {
	s.ID = c.id
	c.rep.send(panelMsg{State: s}, s.Terminal)
}

func (c *ProgramContainer) Hide() {
	c.rep.send(hideMsg{ID: c.id}, true)
}

func (c *ProgramContainer) Clear() {
	c.rep.send(clearMsg{ID: c.id}, true)
}
