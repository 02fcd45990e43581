package ui

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"jobwatch/internal/progress"
	"jobwatch/internal/stream"
	"jobwatch/internal/util/format"
)

const (
	defaultStreamTitle = "Progression"
	defaultStreamIcon  = "⏳"
)

// StreamOptions configures a StreamBinder. Start from DefaultStreamOptions.
type StreamOptions struct {
	Title              string
	Icon               string
	ShowDetails        bool
	ShowStats          bool
	AutoHideOnComplete bool
	AutoHideDelay      time.Duration
	Debug              bool

	// Hooks run after the panel has been rendered.
	OnStart    func(progress.StartPayload)
	OnProgress func(progress.ProgressPayload)
	OnComplete func(progress.CompletePayload)
	OnError    func(progress.ErrorPayload)
}

// DefaultStreamOptions shows every section and keeps the panel after completion.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		Title:         defaultStreamTitle,
		Icon:          defaultStreamIcon,
		ShowDetails:   true,
		ShowStats:     true,
		AutoHideDelay: DefaultAutoHideDelay,
	}
}

// StreamBinder renders a pushed job into a container.
type StreamBinder struct {
	*binder
	opts     StreamOptions
	listener *stream.Listener
}

// NewStreamBinder draws the initial panel and connects to the job's channel
// on the server at base.
func NewStreamBinder(ctx context.Context, c Container, base *url.URL, channel string, opts StreamOptions, listenerOpts ...stream.Option) (*StreamBinder, error) {
	if c == nil {
		return nil, progress.ErrContainerNotFound
	}
	if opts.Title == "" {
		opts.Title = defaultStreamTitle
	}
	if opts.Icon == "" {
		opts.Icon = defaultStreamIcon
	}
	sb := &StreamBinder{opts: opts}
	sb.binder = newBinder(c, sb.skeleton(channel))

	listenerOpts = append(listenerOpts,
		stream.WithDebug(opts.Debug),
		stream.WithHandlers(stream.Handlers{
			OnStart:    sb.handleStart,
			OnProgress: sb.handleProgress,
			OnComplete: sb.handleComplete,
			OnError:    sb.handleError,
			OnWarning:  sb.handleWarning,
		}),
	)
	sb.listener = stream.NewListener(base, channel, listenerOpts...)
	sb.listener.Start(ctx)

	done := sb.listener.Done()
	go func() {
		select {
		case <-done:
			sb.settle()
		case <-sb.done:
		}
	}()
	return sb, nil
}

func (sb *StreamBinder) skeleton(channel string) PanelState {
	s := PanelState{
		ID:    channel,
		Icon:  sb.opts.Icon,
		Title: sb.opts.Title,
		Badge: Badge{Text: "Connexion...", Color: colorPending},
		Label: format.Percent(0),
		Bar:   GradientProgress,
	}
	if sb.opts.ShowDetails {
		s.Details = []Detail{
			{Label: "Total", Value: "-"},
			{Label: "Traités", Value: "-"},
			{Label: "Restants", Value: "-"},
		}
	}
	if sb.opts.ShowStats {
		s.Message = "Connexion au serveur..."
	}
	return s
}

// Listener exposes the underlying listener.
func (sb *StreamBinder) Listener() *stream.Listener { return sb.listener }

// State returns a copy of the rendered panel.
func (sb *StreamBinder) State() PanelState { return sb.snapshot() }

// Outcome reports how the job ended so far. A job error event makes it
// OutcomeFailed while the connection stays open.
func (sb *StreamBinder) Outcome() Outcome { return sb.result() }

// Done is closed once the listener has stopped and any auto-hide has run,
// or after Destroy.
func (sb *StreamBinder) Done() <-chan struct{} { return sb.done }

// Destroy closes the connection, cancels a pending auto-hide and clears the
// container. It is safe to call at any time and more than once.
func (sb *StreamBinder) Destroy() {
	sb.listener.Stop()
	sb.destroy()
}

func (sb *StreamBinder) setDetails(p *PanelState, total, current, remaining int) {
	if !sb.opts.ShowDetails {
		return
	}
	p.Details = []Detail{
		{Label: "Total", Value: strconv.Itoa(total)},
		{Label: "Traités", Value: strconv.Itoa(current)},
		{Label: "Restants", Value: strconv.Itoa(remaining)},
	}
}

func (sb *StreamBinder) handleStart(d progress.StartPayload) {
	sb.update(func(p *PanelState) {
		p.Icon = "🚀"
		p.Badge = Badge{Text: "En cours", Color: colorRunning}
		sb.setDetails(p, d.Total, 0, d.Total)
		if sb.opts.ShowStats {
			p.Message = d.Message
			if p.Message == "" {
				p.Message = "Démarrage..."
			}
		}
	})
	if sb.opts.OnStart != nil {
		sb.opts.OnStart(d)
	}
}

func (sb *StreamBinder) handleProgress(d progress.ProgressPayload) {
	sb.update(func(p *PanelState) {
		pct := format.ClampPercent(d.Percentage)
		p.Percent = pct
		p.Label = format.Percent(pct)
		sb.setDetails(p, d.Total, d.Current, d.Remaining)
		if sb.opts.ShowStats && d.HasMessage() {
			p.Message = *d.Message
		}
	})
	if sb.opts.OnProgress != nil {
		sb.opts.OnProgress(d)
	}
}

func (sb *StreamBinder) handleComplete(d progress.CompletePayload) {
	sb.setOutcome(OutcomeCompleted)
	sb.update(func(p *PanelState) {
		p.Icon = "✅"
		p.Badge = Badge{Text: "Terminé", Color: colorSuccess}
		p.Percent = 100
		p.Label = format.Percent(100)
		p.Bar = GradientSuccess
		p.Terminal = true
		if sb.opts.ShowStats {
			p.Message = d.Message
			if p.Message == "" {
				p.Message = "Terminé avec succès!"
			}
		}
	})
	if sb.opts.AutoHideOnComplete {
		sb.scheduleHide(sb.opts.AutoHideDelay)
	}
	if sb.opts.OnComplete != nil {
		sb.opts.OnComplete(d)
	}
}

func (sb *StreamBinder) handleError(d progress.ErrorPayload) {
	sb.setOutcome(OutcomeFailed)
	sb.update(func(p *PanelState) {
		p.Icon = "❌"
		p.Badge = Badge{Text: "Erreur", Color: colorError}
		p.Bar = GradientError
		if sb.opts.ShowStats {
			p.Message = d.Error
			if p.Message == "" {
				p.Message = "Une erreur est survenue"
			}
		}
	})
	if sb.opts.OnError != nil {
		sb.opts.OnError(d)
	}
}

func (sb *StreamBinder) handleWarning(d progress.WarningPayload) {
	if !sb.opts.ShowStats {
		return
	}
	sb.update(func(p *PanelState) {
		text := d.Text()
		if text == "" {
			text = "Avertissement"
		}
		p.Message = "⚠️ " + text
	})
}
