package ui

import (
	"context"
	"strconv"
	"time"

	"jobwatch/internal/poll"
	"jobwatch/internal/progress"
	"jobwatch/internal/util/format"
)

const (
	pollTitle = "Envoi des factures"
	pollIcon  = "📧"
)

// PollOptions configures a PollBinder. Start from DefaultPollOptions.
type PollOptions struct {
	ShowDetails        bool
	ShowStats          bool
	AutoHideOnComplete bool
	AutoHideDelay      time.Duration

	// Hooks run after the panel has been rendered.
	OnUpdate   func(progress.Snapshot)
	OnComplete func(progress.Snapshot)
	OnFailed   func(progress.Snapshot)
	OnError    func(error)
}

// DefaultPollOptions shows every section and hides the panel 3s after completion.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		ShowDetails:        true,
		ShowStats:          true,
		AutoHideOnComplete: true,
		AutoHideDelay:      DefaultAutoHideDelay,
	}
}

// PollBinder renders a polled job into a container.
type PollBinder struct {
	*binder
	opts    PollOptions
	tracker *poll.Tracker
}

// NewPollBinder draws the initial panel and starts polling jobID right away.
func NewPollBinder(ctx context.Context, c Container, client *poll.Client, jobID string, opts PollOptions, trackerOpts ...poll.Option) (*PollBinder, error) {
	if c == nil {
		return nil, progress.ErrContainerNotFound
	}
	pb := &PollBinder{opts: opts}
	pb.binder = newBinder(c, pb.skeleton(jobID))

	trackerOpts = append(trackerOpts, poll.WithHandlers(poll.Handlers{
		OnUpdate:   pb.handleUpdate,
		OnComplete: pb.handleComplete,
		OnFailed:   pb.handleFailed,
		OnError:    pb.handleError,
	}))
	pb.tracker = poll.NewTracker(client, jobID, trackerOpts...)
	pb.tracker.Start(ctx)
	return pb, nil
}

func (pb *PollBinder) skeleton(jobID string) PanelState {
	s := PanelState{
		ID:    jobID,
		Icon:  pollIcon,
		Title: pollTitle,
		Badge: Badge{Text: "En attente...", Color: colorPending},
		Label: format.Percent(0),
		Bar:   GradientProgress,
	}
	if pb.opts.ShowDetails {
		s.Details = []Detail{
			{Label: "Total", Value: "0", Unit: "emails"},
			{Label: "Envoyés", Value: "0"},
			{Label: "Erreurs", Value: "0"},
			{Label: "Vitesse", Value: "0", Unit: "emails/s"},
		}
	}
	if pb.opts.ShowStats {
		s.Message = "Préparation..."
		s.Note = "Calcul..."
	}
	return s
}

// Tracker exposes the underlying tracker.
func (pb *PollBinder) Tracker() *poll.Tracker { return pb.tracker }

// State returns a copy of the rendered panel.
func (pb *PollBinder) State() PanelState { return pb.snapshot() }

// Outcome reports how the job ended so far.
func (pb *PollBinder) Outcome() Outcome { return pb.result() }

// Done is closed once the job is terminal and any auto-hide has run, or
// after Destroy.
func (pb *PollBinder) Done() <-chan struct{} { return pb.done }

// Destroy stops polling, cancels a pending auto-hide and clears the container.
// It is safe to call at any time and more than once.
func (pb *PollBinder) Destroy() {
	pb.tracker.Stop()
	pb.destroy()
}

func (pb *PollBinder) handleUpdate(s progress.Snapshot) {
	pb.update(func(p *PanelState) {
		d := DisplayFor(s.Status)
		p.Badge = Badge{Text: d.Label, Color: d.Color}
		p.Icon = d.Icon

		pct := format.ClampPercent(s.ProgressPercentage)
		p.Percent = pct
		p.Label = format.Percent(pct)
		switch s.Status {
		case progress.StatusCompleted:
			p.Bar = GradientSuccess
		case progress.StatusFailed:
			p.Bar = GradientError
		}
		p.Terminal = s.Status.Terminal()

		if pb.opts.ShowDetails {
			p.Details = []Detail{
				{Label: "Total", Value: strconv.Itoa(s.TotalUnits), Unit: "emails"},
				{Label: "Envoyés", Value: strconv.Itoa(s.SentUnits)},
				{Label: "Erreurs", Value: strconv.Itoa(s.FailedUnits)},
				{Label: "Vitesse", Value: format.Rate(s.UnitsPerSecond), Unit: "emails/s"},
			}
		}
		if pb.opts.ShowStats {
			p.Message = s.CurrentOperation
			if p.Message == "" {
				p.Message = "En cours..."
			}
			if s.EstimatedRemainingSeconds != nil {
				p.Note = "Temps restant: " + format.MinutesSeconds(*s.EstimatedRemainingSeconds)
			} else {
				p.Note = "Calcul du temps restant..."
			}
		}
	})
	if pb.opts.OnUpdate != nil {
		pb.opts.OnUpdate(s)
	}
}

func (pb *PollBinder) handleComplete(s progress.Snapshot) {
	pb.setOutcome(OutcomeCompleted)
	if pb.opts.ShowStats {
		pb.update(func(p *PanelState) {
			p.Message = "✅ Terminé! " + strconv.Itoa(s.SuccessfulUnits) + " emails envoyés avec succès"
			p.Note = "Durée totale: " + format.WholeSeconds(s.DurationSeconds)
		})
	}
	if pb.opts.AutoHideOnComplete {
		pb.scheduleHide(pb.opts.AutoHideDelay)
	}
	if pb.opts.OnComplete != nil {
		pb.opts.OnComplete(s)
	}
	pb.settle()
}

func (pb *PollBinder) handleFailed(s progress.Snapshot) {
	pb.setOutcome(OutcomeFailed)
	if pb.opts.ShowStats {
		pb.update(func(p *PanelState) {
			msg := s.ErrorMessage
			if msg == "" {
				msg = "Erreur inconnue"
			}
			p.Message = "❌ Erreur: " + msg
			p.Note = ""
		})
	}
	if pb.opts.OnFailed != nil {
		pb.opts.OnFailed(s)
	}
	pb.settle()
}

func (pb *PollBinder) handleError(err error) {
	pb.update(func(p *PanelState) {
		p.Badge = Badge{Text: "Erreur", Color: colorError}
	})
	if pb.opts.OnError != nil {
		pb.opts.OnError(err)
	}
}
