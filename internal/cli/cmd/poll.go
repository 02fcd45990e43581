package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"jobwatch/internal/poll"
	"jobwatch/internal/ui"
)

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "poll <job-id>...",
		Short:         "Follow jobs by polling their status endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE:          runPoll,
	}
	fs := cmd.Flags()
	fs.Duration("interval", poll.DefaultInterval, "Delay between two status requests")
	fs.String("api-url", "", "Override the status endpoint (single job only)")
	fs.Bool("no-auto-hide", false, "Keep the panel after completion")
	fs.Duration("auto-hide-delay", ui.DefaultAutoHideDelay, "Delay before a completed panel hides")
	fs.Bool("no-details", false, "Hide the counters grid")
	fs.Bool("no-stats", false, "Hide the operation and remaining time line")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
	return cmd
}

func runPoll(cmd *cobra.Command, args []string) error {
	e := mustEnv(cmd)
	fs := cmd.Flags()

	interval, _ := fs.GetDuration("interval")
	apiURL, _ := fs.GetString("api-url")
	noAutoHide, _ := fs.GetBool("no-auto-hide")
	hideDelay, _ := fs.GetDuration("auto-hide-delay")
	noDetails, _ := fs.GetBool("no-details")
	noStats, _ := fs.GetBool("no-stats")
	noUI, _ := fs.GetBool("no-ui")

	if apiURL != "" && len(args) > 1 {
		return &ExitError{Code: ExitCLIError, Err: errors.New("--api-url accepts a single job id")}
	}
	if interval <= 0 {
		return &ExitError{Code: ExitCLIError, Err: errors.New("--interval must be positive")}
	}

	client, err := newClient(e)
	if err != nil {
		return err
	}

	useTUI := !noUI && isTerminal()
	opts := ui.DefaultPollOptions()
	opts.ShowDetails = !noDetails
	opts.ShowStats = !noStats
	opts.AutoHideOnComplete = !noAutoHide && useTUI
	opts.AutoHideDelay = hideDelay

	trackerOpts := []poll.Option{
		poll.WithInterval(interval),
		poll.WithAPIURL(apiURL),
		poll.WithLogger(e.watchLogger(useTUI)),
	}

	start := func(ctx context.Context, jobID string, c ui.Container) (watcher, error) {
		pb, err := ui.NewPollBinder(ctx, c, client, jobID, opts, trackerOpts...)
		if err != nil {
			return nil, err
		}
		return pb, nil
	}
	return runWatch(cmd.Context(), cmd.OutOrStdout(), args, useTUI, start)
}
