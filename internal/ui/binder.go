package ui

import (
	"sync"
	"time"
)

// DefaultAutoHideDelay is how long a completed panel stays visible before hiding.
const DefaultAutoHideDelay = 3 * time.Second

// binder owns a panel's state and its container. Renders happen under mu
// so the container sees them in order and never after Clear.
type binder struct {
	c Container

	mu        sync.Mutex
	state     PanelState
	outcome   Outcome
	destroyed bool
	hideTimer *time.Timer

	done     chan struct{}
	doneOnce sync.Once
}

func newBinder(c Container, initial PanelState) *binder {
	b := &binder{c: c, state: initial, done: make(chan struct{})}
	c.Render(initial.clone())
	return b
}

// update applies fn and renders the result. It is a no-op after destroy.
func (b *binder) update(fn func(*PanelState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	fn(&b.state)
	b.c.Render(b.state.clone())
}

func (b *binder) setOutcome(o Outcome) {
	b.mu.Lock()
	if !b.destroyed {
		b.outcome = o
	}
	b.mu.Unlock()
}

// scheduleHide hides the container after d and then marks the binder done.
func (b *binder) scheduleHide(d time.Duration) {
	if d <= 0 {
		d = DefaultAutoHideDelay
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed || b.hideTimer != nil {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		b.mu.Lock()
		if b.destroyed || b.hideTimer != t {
			b.mu.Unlock()
			return
		}
		b.hideTimer = nil
		b.c.Hide()
		b.mu.Unlock()
		b.finish()
	})
	b.hideTimer = t
}

// settle marks the binder done unless an auto-hide is still pending.
func (b *binder) settle() {
	b.mu.Lock()
	pending := b.hideTimer != nil
	b.mu.Unlock()
	if !pending {
		b.finish()
	}
}

func (b *binder) finish() {
	b.doneOnce.Do(func() { close(b.done) })
}

// destroy cancels any pending hide and clears the container. It reports
// whether this call did the work.
func (b *binder) destroy() bool {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return false
	}
	b.destroyed = true
	if b.hideTimer != nil {
		b.hideTimer.Stop()
		b.hideTimer = nil
	}
	if b.outcome == OutcomeRunning {
		b.outcome = OutcomeStopped
	}
	b.c.Clear()
	b.mu.Unlock()
	b.finish()
	return true
}

func (b *binder) snapshot() PanelState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clone()
}

func (b *binder) result() Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outcome
}
