package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"jobwatch/internal/ui"
)

// watcher is what both binders look like to the command layer.
type watcher interface {
	Done() <-chan struct{}
	Outcome() ui.Outcome
	Destroy()
}

type startFunc func(ctx context.Context, jobID string, c ui.Container) (watcher, error)

type watchResult struct {
	jobID   string
	outcome ui.Outcome
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runWatch follows every job until each one settles or the run is interrupted.
// With a terminal it draws one interactive panel per job; otherwise each job
// prints plain lines to out.
func runWatch(ctx context.Context, out io.Writer, jobIDs []string, useTUI bool, start startFunc) error {
	var (
		results     []watchResult
		interrupted bool
		err         error
	)
	if useTUI {
		results, interrupted, err = watchTUI(ctx, jobIDs, start)
	} else {
		results, err = watchLines(ctx, out, jobIDs, start)
		interrupted = ctx.Err() != nil
	}
	if err != nil {
		return err
	}
	return exitFor(results, interrupted)
}

func watchTUI(ctx context.Context, jobIDs []string, start startFunc) ([]watchResult, bool, error) {
	host := ui.NewHost(ctx, jobIDs)

	watchers := make([]watcher, 0, len(jobIDs))
	results := make([]watchResult, len(jobIDs))
	var mu sync.Mutex
	for i, id := range jobIDs {
		w, err := start(ctx, id, host.Panel(id))
		if err != nil {
			for _, w := range watchers {
				w.Destroy()
			}
			return nil, false, &ExitError{Code: ExitCLIError, Err: err}
		}
		watchers = append(watchers, w)
		results[i] = watchResult{jobID: id, outcome: ui.OutcomeRunning}
		go func(i int, id string, w watcher) {
			<-w.Done()
			mu.Lock()
			results[i].outcome = w.Outcome()
			mu.Unlock()
			host.Release(id)
		}(i, id, w)
	}

	interrupted, err := host.Run()
	for _, w := range watchers {
		w.Destroy()
	}
	if err != nil {
		return nil, interrupted, &ExitError{Code: ExitCLIError, Err: err}
	}
	mu.Lock()
	defer mu.Unlock()
	return append([]watchResult(nil), results...), interrupted, nil
}

func watchLines(ctx context.Context, out io.Writer, jobIDs []string, start startFunc) ([]watchResult, error) {
	lw := ui.NewLockedWriter(out)
	results := make([]watchResult, len(jobIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range jobIDs {
		i, id := i, id
		g.Go(func() error {
			w, err := start(gctx, id, ui.NewLineContainer(lw))
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("%s: %w", id, err)}
			}
			defer w.Destroy()

			select {
			case <-w.Done():
			case <-gctx.Done():
			}
			results[i] = watchResult{jobID: id, outcome: w.Outcome()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// exitFor maps the per-job outcomes to the process exit status. A job that
// settled while still running lost its connection for good.
func exitFor(results []watchResult, interrupted bool) error {
	var failed, lost []string
	for _, r := range results {
		switch r.outcome {
		case ui.OutcomeFailed:
			failed = append(failed, r.jobID)
		case ui.OutcomeRunning:
			if !interrupted {
				lost = append(lost, r.jobID)
			}
		}
	}
	switch {
	case len(failed) > 0:
		return &ExitError{Code: ExitJobFailed, Err: fmt.Errorf("%d job(s) failed: %s", len(failed), strings.Join(failed, ", "))}
	case len(lost) > 0:
		return &ExitError{Code: ExitConnection, Err: fmt.Errorf("lost connection to %d job(s): %s", len(lost), strings.Join(lost, ", "))}
	case interrupted:
		return &ExitError{Code: ExitCLIError, Err: errors.New("interrupted")}
	}
	return nil
}
