package ui

import (
	"fmt"
	"io"
	"sync"
)

// LineContainer prints a panel as plain text lines, one per visible change.
// It is the render surface when no terminal is attached.
type LineContainer struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func NewLineContainer(w io.Writer) *LineContainer {
	return &LineContainer{w: w}
}

func (l *LineContainer) Render(s PanelState) {
	line := s.Line()
	l.mu.Lock()
	defer l.mu.Unlock()
	if line == l.last {
		return
	}
	l.last = line
	_, _ = fmt.Fprintln(l.w, line)
}

// Hide forgets the last line so a later render prints again.
func (l *LineContainer) Hide() {
	l.mu.Lock()
	l.last = ""
	l.mu.Unlock()
}

func (l *LineContainer) Clear() { l.Hide() }

// LockedWriter serializes writes of several containers sharing one writer.
type LockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLockedWriter(w io.Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

func (lw *LockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
