package cmd

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"jobwatch/internal/progress"
	"jobwatch/internal/stream"
	"jobwatch/internal/ui"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stream <job-id>...",
		Short:         "Follow jobs by listening to their event stream",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE:          runStream,
	}
	fs := cmd.Flags()
	fs.String("title", "", "Panel title (default \"Progression\")")
	fs.String("icon", "", "Panel icon (default ⏳)")
	fs.Bool("auto-hide", false, "Hide the panel after completion")
	fs.Duration("auto-hide-delay", ui.DefaultAutoHideDelay, "Delay before a completed panel hides")
	fs.Bool("no-details", false, "Hide the counters grid")
	fs.Bool("no-stats", false, "Hide the message line")
	fs.Bool("no-reconnect", false, "Give up on the first dropped connection")
	fs.String("events-url", "", "Override the stream endpoint (single job only)")
	fs.Bool("exit-on-error", true, "Stop following a job once it reports an error")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
	return cmd
}

func runStream(cmd *cobra.Command, args []string) error {
	e := mustEnv(cmd)
	fs := cmd.Flags()

	title, _ := fs.GetString("title")
	icon, _ := fs.GetString("icon")
	autoHide, _ := fs.GetBool("auto-hide")
	hideDelay, _ := fs.GetDuration("auto-hide-delay")
	noDetails, _ := fs.GetBool("no-details")
	noStats, _ := fs.GetBool("no-stats")
	noReconnect, _ := fs.GetBool("no-reconnect")
	eventsURL, _ := fs.GetString("events-url")
	exitOnError, _ := fs.GetBool("exit-on-error")
	noUI, _ := fs.GetBool("no-ui")

	if eventsURL != "" && len(args) > 1 {
		return &ExitError{Code: ExitCLIError, Err: errors.New("--events-url accepts a single job id")}
	}

	// The poll client carries the session cookie; the listener reuses its transport.
	client, err := newClient(e)
	if err != nil {
		return err
	}

	useTUI := !noUI && isTerminal()
	listenerOpts := []stream.Option{
		stream.WithHTTPClient(client.HTTPClient()),
		stream.WithReconnect(!noReconnect),
		stream.WithLogger(e.watchLogger(useTUI)),
	}
	if eventsURL != "" {
		listenerOpts = append(listenerOpts, stream.WithURL(eventsURL))
	}

	start := func(ctx context.Context, jobID string, c ui.Container) (watcher, error) {
		opts := ui.DefaultStreamOptions()
		opts.Title = title
		opts.Icon = icon
		opts.ShowDetails = !noDetails
		opts.ShowStats = !noStats
		opts.AutoHideOnComplete = autoHide && useTUI
		opts.AutoHideDelay = hideDelay
		opts.Debug = e.settings.Debug

		w := &streamWatcher{failed: make(chan struct{})}
		if exitOnError {
			opts.OnError = func(progress.ErrorPayload) { w.fail() }
		}
		sb, err := ui.NewStreamBinder(ctx, c, client.BaseURL(), jobID, opts, listenerOpts...)
		if err != nil {
			return nil, err
		}
		w.StreamBinder = sb
		return w, nil
	}
	return runWatch(cmd.Context(), cmd.OutOrStdout(), args, useTUI, start)
}

// streamWatcher also settles when the job reports an error, since the
// connection stays open after one.
type streamWatcher struct {
	*ui.StreamBinder

	once    sync.Once
	failed  chan struct{}
	done    chan struct{}
	started sync.Once
}

func (w *streamWatcher) fail() { w.once.Do(func() { close(w.failed) }) }

func (w *streamWatcher) Done() <-chan struct{} {
	w.started.Do(func() {
		w.done = make(chan struct{})
		go func() {
			select {
			case <-w.StreamBinder.Done():
			case <-w.failed:
			}
			close(w.done)
		}()
	})
	return w.done
}
