package poll

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch/internal/logger"
	"jobwatch/internal/progress"
	"jobwatch/internal/testutil"
)

const (
	fastInterval = 20 * time.Millisecond
	waitFor      = 2 * time.Second
)

type calls struct {
	mu        sync.Mutex
	updates   []progress.Status
	completes int
	failures  int
	errs      []error
}

func (c *calls) handlers() Handlers {
	return Handlers{
		OnUpdate: func(s progress.Snapshot) {
			c.mu.Lock()
			c.updates = append(c.updates, s.Status)
			c.mu.Unlock()
		},
		OnComplete: func(progress.Snapshot) { c.mu.Lock(); c.completes++; c.mu.Unlock() },
		OnFailed:   func(progress.Snapshot) { c.mu.Lock(); c.failures++; c.mu.Unlock() },
		OnError: func(err error) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		},
	}
}

func (c *calls) counts() (updates, completes, failures, errs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates), c.completes, c.failures, len(c.errs)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func snap(status progress.Status, pct float64) testutil.PollResponse {
	return testutil.OK(progress.Snapshot{JobID: "j", Status: status, ProgressPercentage: pct})
}

func newTracker(t *testing.T, b *testutil.Backend, c *calls, opts ...Option) *Tracker {
	t.Helper()
	opts = append([]Option{
		WithInterval(fastInterval),
		WithHandlers(c.handlers()),
		WithLogger(logger.Discard()),
	}, opts...)
	tr := NewTracker(newClient(t, b), "j", opts...)
	t.Cleanup(tr.Stop)
	return tr
}

func waitStopped(t *testing.T, tr *Tracker) {
	t.Helper()
	require.Eventually(t, func() bool { return !tr.Running() }, waitFor, 5*time.Millisecond)
}

func TestTrackerCompletesOnce(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j",
		snap(progress.StatusPending, 0),
		snap(progress.StatusInProgress, 50),
		snap(progress.StatusCompleted, 100),
	)
	c := &calls{}
	tr := newTracker(t, b, c)

	tr.Start(context.Background())
	waitStopped(t, tr)
	polled := b.PollCount("j")
	time.Sleep(5 * fastInterval)

	updates, completes, failures, errs := c.counts()
	assert.Equal(t, 3, updates)
	assert.Equal(t, 1, completes)
	assert.Zero(t, failures)
	assert.Zero(t, errs)
	assert.Equal(t, progress.StatusCompleted, tr.LastStatus())
	assert.Equal(t, polled, b.PollCount("j"), "no fetch after terminal status")
}

func TestTrackerFailedOnce(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", snap(progress.StatusInProgress, 10), snap(progress.StatusFailed, 10))
	c := &calls{}
	tr := newTracker(t, b, c)

	tr.Start(context.Background())
	waitStopped(t, tr)

	_, completes, failures, _ := c.counts()
	assert.Zero(t, completes)
	assert.Equal(t, 1, failures)
}

func TestTrackerRestartRefiresTerminal(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", snap(progress.StatusCompleted, 100))
	c := &calls{}
	tr := newTracker(t, b, c)

	tr.Start(context.Background())
	waitStopped(t, tr)
	tr.Restart(context.Background())
	waitStopped(t, tr)

	_, completes, _, _ := c.counts()
	assert.Equal(t, 2, completes)
}

func TestTrackerErrorsAreNonFatal(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.Fail("boom"), snap(progress.StatusInProgress, 20))
	c := &calls{}
	tr := newTracker(t, b, c)

	tr.Start(context.Background())
	require.Eventually(t, func() bool {
		updates, _, _, _ := c.counts()
		return updates >= 1
	}, waitFor, 5*time.Millisecond)

	assert.True(t, tr.Running())
	c.mu.Lock()
	require.NotEmpty(t, c.errs)
	assert.ErrorIs(t, c.errs[0], progress.ErrUnsuccessful)
	assert.Contains(t, c.errs[0].Error(), "boom")
	c.mu.Unlock()
}

func TestTrackerTransportErrorKeepsPolling(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.PollResponse{Code: 502, Body: "bad gateway"})
	c := &calls{}
	tr := newTracker(t, b, c)

	tr.Start(context.Background())
	require.Eventually(t, func() bool { return b.PollCount("j") >= 3 }, waitFor, 5*time.Millisecond)

	_, _, _, errs := c.counts()
	assert.GreaterOrEqual(t, errs, 2)
	assert.True(t, tr.Running())
}

func TestTrackerStartTwiceWarns(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", snap(progress.StatusInProgress, 1))
	var buf syncBuffer
	c := &calls{}
	tr := newTracker(t, b, c, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	tr.Start(context.Background())
	tr.Start(context.Background())

	assert.Contains(t, buf.String(), "tracker already running")
	assert.True(t, tr.Running())
}

func TestTrackerStopIsIdempotent(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", snap(progress.StatusInProgress, 1))
	c := &calls{}
	tr := newTracker(t, b, c)

	tr.Stop()
	tr.Start(context.Background())
	tr.Stop()
	tr.Stop()
	assert.False(t, tr.Running())

	n := b.PollCount("j")
	time.Sleep(5 * fastInterval)
	assert.Equal(t, n, b.PollCount("j"))
}

func TestTrackerStopFromCallback(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", snap(progress.StatusInProgress, 1))
	var tr *Tracker
	updates := make(chan struct{}, 16)
	tr = NewTracker(newClient(t, b), "j",
		WithInterval(fastInterval),
		WithLogger(logger.Discard()),
		WithHandlers(Handlers{OnUpdate: func(progress.Snapshot) {
			tr.Stop()
			updates <- struct{}{}
		}}),
	)

	tr.Start(context.Background())
	select {
	case <-updates:
	case <-time.After(waitFor):
		t.Fatal("no update")
	}
	waitStopped(t, tr)
	time.Sleep(5 * fastInterval)
	assert.Len(t, updates, 0)
}

func TestTrackerDropsStaleResponses(t *testing.T) {
	b := testutil.NewBackend(t)
	// The first request answers last; its completed status must be ignored.
	b.QueuePoll("j",
		testutil.PollResponse{Delay: 150 * time.Millisecond, Body: snap(progress.StatusCompleted, 100).Body},
		snap(progress.StatusInProgress, 30),
	)
	c := &calls{}
	tr := newTracker(t, b, c, WithInterval(20*time.Millisecond))

	tr.Start(context.Background())
	time.Sleep(300 * time.Millisecond)

	_, completes, _, _ := c.counts()
	assert.Zero(t, completes)
	assert.True(t, tr.Running())
	assert.Equal(t, progress.StatusInProgress, tr.LastStatus())
}

func TestTrackerContextCancel(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", snap(progress.StatusInProgress, 1))
	c := &calls{}
	tr := newTracker(t, b, c)

	ctx, cancel := context.WithCancel(context.Background())
	tr.Start(ctx)
	cancel()
	waitStopped(t, tr)
}

func TestTrackerCustomAPIURL(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("other", testutil.OK(progress.Snapshot{JobID: "other", Status: progress.StatusCompleted}))
	c := &calls{}
	client := newClient(t, b)
	tr := NewTracker(client, "j",
		WithAPIURL(client.ProgressURL("other")),
		WithInterval(fastInterval),
		WithHandlers(c.handlers()),
		WithLogger(logger.Discard()),
	)

	tr.Start(context.Background())
	waitStopped(t, tr)
	assert.Equal(t, 1, b.PollCount("other"))
	assert.Zero(t, b.PollCount("j"))
}
