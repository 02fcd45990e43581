package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch/internal/logger"
	"jobwatch/internal/poll"
	"jobwatch/internal/progress"
	"jobwatch/internal/testutil"
)

const (
	tick    = 20 * time.Millisecond
	waitFor = 2 * time.Second
)

// recordingContainer keeps every call it receives.
type recordingContainer struct {
	mu      sync.Mutex
	renders []PanelState
	hides   int
	clears  int
}

func (c *recordingContainer) Render(s PanelState) {
	c.mu.Lock()
	c.renders = append(c.renders, s)
	c.mu.Unlock()
}

func (c *recordingContainer) Hide() { c.mu.Lock(); c.hides++; c.mu.Unlock() }

func (c *recordingContainer) Clear() { c.mu.Lock(); c.clears++; c.mu.Unlock() }

func (c *recordingContainer) last() PanelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders[len(c.renders)-1]
}

func (c *recordingContainer) counts() (renders, hides, clears int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.renders), c.hides, c.clears
}

func remaining(s float64) *float64 { return &s }

func newPollBinder(t *testing.T, b *testutil.Backend, opts PollOptions) (*PollBinder, *recordingContainer) {
	t.Helper()
	client, err := poll.NewClient(b.URL())
	require.NoError(t, err)
	c := &recordingContainer{}
	pb, err := NewPollBinder(context.Background(), c, client, "j", opts,
		poll.WithInterval(tick), poll.WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(pb.Destroy)
	return pb, c
}

func TestPollBinderNilContainer(t *testing.T) {
	client, err := poll.NewClient("http://localhost:8000")
	require.NoError(t, err)
	_, err = NewPollBinder(context.Background(), nil, client, "j", DefaultPollOptions())
	assert.ErrorIs(t, err, progress.ErrContainerNotFound)
}

func TestPollBinderSkeleton(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.PollResponse{Delay: time.Second, Body: "{}"})
	pb, c := newPollBinder(t, b, DefaultPollOptions())

	c.mu.Lock()
	first := c.renders[0]
	c.mu.Unlock()
	assert.Equal(t, "📧", first.Icon)
	assert.Equal(t, "Envoi des factures", first.Title)
	assert.Equal(t, Badge{Text: "En attente...", Color: "#ffc107"}, first.Badge)
	assert.Equal(t, "0%", first.Label)
	assert.Equal(t, "0", first.DetailValue("Total"))
	assert.Equal(t, "Préparation...", first.Message)
	assert.Equal(t, "Calcul...", first.Note)
	assert.Equal(t, OutcomeRunning, pb.Outcome())
}

func TestPollBinderRendersInProgress(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{
		JobID:                     "j",
		Status:                    progress.StatusInProgress,
		ProgressPercentage:        42,
		TotalUnits:                100,
		SentUnits:                 42,
		FailedUnits:               1,
		UnitsPerSecond:            2.46,
		CurrentOperation:          "Envoi à client@example.com",
		EstimatedRemainingSeconds: remaining(125),
	}))
	pb, _ := newPollBinder(t, b, DefaultPollOptions())

	require.Eventually(t, func() bool { return pb.State().Badge.Text == "En cours" }, waitFor, 5*time.Millisecond)
	s := pb.State()
	assert.Equal(t, 42.0, s.Percent)
	assert.Equal(t, "42%", s.Label)
	assert.Equal(t, "#2196f3", s.Badge.Color)
	assert.Equal(t, "🚀", s.Icon)
	assert.Equal(t, "100", s.DetailValue("Total"))
	assert.Equal(t, "42", s.DetailValue("Envoyés"))
	assert.Equal(t, "1", s.DetailValue("Erreurs"))
	assert.Equal(t, "2.5", s.DetailValue("Vitesse"))
	assert.Equal(t, "Envoi à client@example.com", s.Message)
	assert.Equal(t, "Temps restant: 2m 5s", s.Note)
}

func TestPollBinderStatusDisplay(t *testing.T) {
	tests := []struct {
		status progress.Status
		want   Badge
		icon   string
	}{
		{progress.StatusPending, Badge{"En attente", "#ffc107"}, "⏳"},
		{progress.StatusInProgress, Badge{"En cours", "#2196f3"}, "🚀"},
		{progress.StatusCompleted, Badge{"Terminé", "#4caf50"}, "✅"},
		{progress.StatusFailed, Badge{"Échoué", "#f44336"}, "❌"},
		{progress.Status("paused"), Badge{"En attente", "#ffc107"}, "⏳"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			b := testutil.NewBackend(t)
			b.QueuePoll("j", testutil.OK(progress.Snapshot{JobID: "j", Status: tt.status}))
			opts := DefaultPollOptions()
			opts.AutoHideOnComplete = false
			pb, c := newPollBinder(t, b, opts)

			require.Eventually(t, func() bool {
				n, _, _ := c.counts()
				return n >= 2
			}, waitFor, 5*time.Millisecond)
			s := pb.State()
			assert.Equal(t, tt.want, s.Badge)
			assert.Equal(t, tt.icon, s.Icon)
		})
	}
}

func TestPollBinderUnknownRemaining(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{JobID: "j", Status: progress.StatusInProgress}))
	pb, _ := newPollBinder(t, b, DefaultPollOptions())

	require.Eventually(t, func() bool { return pb.State().Note == "Calcul du temps restant..." }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "En cours...", pb.State().Message)
}

func TestPollBinderCompleteAutoHides(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{
		JobID: "j", Status: progress.StatusCompleted, ProgressPercentage: 100,
		SuccessfulUnits: 12, DurationSeconds: 33.8,
	}))
	opts := DefaultPollOptions()
	opts.AutoHideDelay = 30 * time.Millisecond
	var hooked int
	var mu sync.Mutex
	opts.OnComplete = func(progress.Snapshot) { mu.Lock(); hooked++; mu.Unlock() }
	pb, c := newPollBinder(t, b, opts)

	select {
	case <-pb.Done():
	case <-time.After(waitFor):
		t.Fatal("binder not done")
	}
	s := pb.State()
	assert.Equal(t, "✅ Terminé! 12 emails envoyés avec succès", s.Message)
	assert.Equal(t, "Durée totale: 33s", s.Note)
	assert.Equal(t, GradientSuccess, s.Bar)
	assert.True(t, s.Terminal)
	assert.Equal(t, OutcomeCompleted, pb.Outcome())

	_, hides, _ := c.counts()
	assert.Equal(t, 1, hides)
	mu.Lock()
	assert.Equal(t, 1, hooked)
	mu.Unlock()
}

func TestPollBinderCompleteWithoutAutoHide(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{JobID: "j", Status: progress.StatusCompleted}))
	opts := DefaultPollOptions()
	opts.AutoHideOnComplete = false
	pb, c := newPollBinder(t, b, opts)

	select {
	case <-pb.Done():
	case <-time.After(waitFor):
		t.Fatal("binder not done")
	}
	_, hides, _ := c.counts()
	assert.Zero(t, hides)
}

func TestPollBinderFailed(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "with message", message: "quota dépassé", want: "❌ Erreur: quota dépassé"},
		{name: "without message", want: "❌ Erreur: Erreur inconnue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewBackend(t)
			b.QueuePoll("j", testutil.OK(progress.Snapshot{
				JobID: "j", Status: progress.StatusFailed, ErrorMessage: tt.message,
				EstimatedRemainingSeconds: remaining(10),
			}))
			pb, _ := newPollBinder(t, b, DefaultPollOptions())

			select {
			case <-pb.Done():
			case <-time.After(waitFor):
				t.Fatal("binder not done")
			}
			s := pb.State()
			assert.Equal(t, tt.want, s.Message)
			assert.Empty(t, s.Note)
			assert.Equal(t, GradientError, s.Bar)
			assert.Equal(t, OutcomeFailed, pb.Outcome())
		})
	}
}

func TestPollBinderTransportErrorBadge(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.Fail("boom"), testutil.OK(progress.Snapshot{JobID: "j", Status: progress.StatusInProgress}))
	opts := DefaultPollOptions()
	errs := make(chan error, 8)
	opts.OnError = func(err error) { errs <- err }
	pb, c := newPollBinder(t, b, opts)

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(waitFor):
		t.Fatal("no error hook")
	}
	c.mu.Lock()
	var sawError bool
	for _, r := range c.renders {
		if r.Badge == (Badge{Text: "Erreur", Color: "#f44336"}) {
			sawError = true
		}
	}
	c.mu.Unlock()
	assert.True(t, sawError)

	require.Eventually(t, func() bool { return pb.State().Badge.Text == "En cours" }, waitFor, 5*time.Millisecond)
	assert.True(t, pb.Tracker().Running())
}

func TestPollBinderHiddenSections(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{JobID: "j", Status: progress.StatusInProgress, ProgressPercentage: 5}))
	pb, _ := newPollBinder(t, b, PollOptions{})

	require.Eventually(t, func() bool { return pb.State().Label == "5%" }, waitFor, 5*time.Millisecond)
	s := pb.State()
	assert.Nil(t, s.Details)
	assert.Empty(t, s.Message)
	assert.Empty(t, s.Note)
}

func TestPollBinderDestroy(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{JobID: "j", Status: progress.StatusCompleted}))
	opts := DefaultPollOptions()
	opts.AutoHideDelay = time.Hour
	pb, c := newPollBinder(t, b, opts)

	require.Eventually(t, func() bool { return pb.Outcome() == OutcomeCompleted }, waitFor, 5*time.Millisecond)
	pb.Destroy()
	pb.Destroy()

	renders, hides, clears := c.counts()
	assert.Equal(t, 1, clears)
	assert.Zero(t, hides, "pending auto-hide canceled")
	assert.False(t, pb.Tracker().Running())
	assert.Equal(t, OutcomeCompleted, pb.Outcome())

	time.Sleep(3 * tick)
	after, _, _ := c.counts()
	assert.Equal(t, renders, after, "no render after destroy")

	select {
	case <-pb.Done():
	default:
		t.Fatal("done not closed by destroy")
	}
}

func TestPollBinderDestroyWhileRunning(t *testing.T) {
	b := testutil.NewBackend(t)
	b.QueuePoll("j", testutil.OK(progress.Snapshot{JobID: "j", Status: progress.StatusInProgress}))
	pb, c := newPollBinder(t, b, DefaultPollOptions())

	pb.Destroy()
	assert.Equal(t, OutcomeStopped, pb.Outcome())
	_, _, clears := c.counts()
	assert.Equal(t, 1, clears)
}
