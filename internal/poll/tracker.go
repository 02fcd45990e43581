// Package poll tracks a server-side job by fetching its status on a fixed
// interval and raising lifecycle callbacks on state transitions.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobwatch/internal/logger"
	"jobwatch/internal/metrics"
	"jobwatch/internal/progress"
)

// DefaultInterval is the delay between two scheduled fetches.
const DefaultInterval = time.Second

// Handlers receives tracker lifecycle callbacks. Any field may be nil.
// Callbacks of one tracker never run concurrently.
type Handlers struct {
	// OnUpdate fires for every successful payload.
	OnUpdate func(progress.Snapshot)
	// OnComplete fires once when the status becomes completed.
	OnComplete func(progress.Snapshot)
	// OnFailed fires once when the status becomes failed.
	OnFailed func(progress.Snapshot)
	// OnError fires for transport failures and success=false payloads.
	OnError func(error)
}

// Tracker polls one job's status endpoint.
type Tracker struct {
	jobID    string
	apiURL   string
	interval time.Duration
	client   *Client
	handlers Handlers
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	runID      uint64
	cancel     context.CancelFunc
	lastStatus progress.Status
	issued     uint64

	// dispatchMu serializes callback delivery.
	dispatchMu sync.Mutex
	applied    uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithAPIURL overrides the status endpoint.
func WithAPIURL(u string) Option {
	return func(t *Tracker) {
		if u != "" {
			t.apiURL = u
		}
	}
}

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithHandlers installs lifecycle callbacks.
func WithHandlers(h Handlers) Option {
	return func(t *Tracker) {
		t.handlers = h
	}
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker builds a tracker for jobID. It does not start polling.
func NewTracker(client *Client, jobID string, opts ...Option) *Tracker {
	t := &Tracker{
		jobID:    jobID,
		interval: DefaultInterval,
		client:   client,
		logger:   logger.Get(),
	}
	for _, o := range opts {
		o(t)
	}
	if t.apiURL == "" {
		t.apiURL = client.ProgressURL(jobID)
	}
	t.logger = t.logger.With("job_id", jobID)
	return t
}

// JobID returns the tracked job identifier.
func (t *Tracker) JobID() string { return t.jobID }

// Start fetches immediately and then on every interval until Stop is
// called, ctx is done, or the job reaches a terminal status. Starting a
// running tracker only logs a warning.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		t.logger.Warn("tracker already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.running = true
	t.runID++
	id := t.runID
	t.cancel = cancel
	t.mu.Unlock()

	metrics.WatcherStarted()
	t.logger.Debug("tracker started", "url", t.apiURL, "interval", t.interval)
	go t.loop(runCtx, id)
}

// Stop cancels the schedule. It is safe to call at any time, any number of times.
func (t *Tracker) Stop() {
	t.mu.Lock()
	id := t.runID
	t.mu.Unlock()
	t.stopRun(id)
}

// Restart stops the tracker, forgets the last observed status and starts again.
func (t *Tracker) Restart(ctx context.Context) {
	t.Stop()
	t.mu.Lock()
	t.lastStatus = ""
	t.mu.Unlock()
	t.Start(ctx)
}

// Running reports whether the schedule is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// LastStatus returns the status of the most recently applied payload.
func (t *Tracker) LastStatus() progress.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastStatus
}

func (t *Tracker) stopRun(id uint64) {
	t.mu.Lock()
	if !t.running || t.runID != id {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	metrics.WatcherStopped()
	t.logger.Debug("tracker stopped")
}

func (t *Tracker) loop(ctx context.Context, id uint64) {
	defer t.stopRun(id)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick(ctx, id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx, id)
		}
	}
}

// tick does not wait for the previous fetch; slow responses may overlap.
func (t *Tracker) tick(ctx context.Context, id uint64) {
	t.mu.Lock()
	t.issued++
	seq := t.issued
	t.mu.Unlock()
	go t.fetch(ctx, id, seq)
}

func (t *Tracker) fetch(ctx context.Context, id, seq uint64) {
	snap, err := t.client.GetURL(ctx, t.apiURL)

	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	// A stopped run delivers nothing, including the cancellation error.
	if ctx.Err() != nil {
		return
	}
	if seq < t.applied {
		metrics.RecordPoll(metrics.ResultStale)
		t.logger.Debug("dropping stale response", "seq", seq, "applied", t.applied)
		return
	}
	t.applied = seq

	if err != nil {
		t.report(err)
		return
	}
	metrics.RecordPoll(metrics.ResultSuccess)
	t.logger.Debug("progress", "status", snap.Status, "percent", snap.ProgressPercentage)
	t.apply(id, snap)
}

func (t *Tracker) report(err error) {
	if errors.Is(err, progress.ErrUnsuccessful) {
		metrics.RecordPoll(metrics.ResultUnsuccessful)
	} else {
		metrics.RecordPoll(metrics.ResultError)
	}
	t.logger.Warn("progress fetch failed", "error", err)
	if t.handlers.OnError != nil {
		t.handlers.OnError(err)
	}
}

// apply runs the transition logic for one payload. Callers hold dispatchMu.
func (t *Tracker) apply(id uint64, snap progress.Snapshot) {
	t.mu.Lock()
	previous := t.lastStatus
	t.lastStatus = snap.Status
	t.mu.Unlock()

	if t.handlers.OnUpdate != nil {
		t.handlers.OnUpdate(snap)
	}

	switch {
	case snap.Status == progress.StatusCompleted && previous != progress.StatusCompleted:
		if t.handlers.OnComplete != nil {
			t.handlers.OnComplete(snap)
		}
	case snap.Status == progress.StatusFailed && previous != progress.StatusFailed:
		if t.handlers.OnFailed != nil {
			t.handlers.OnFailed(snap)
		}
	}

	if snap.Status.Terminal() {
		t.stopRun(id)
	}
}
