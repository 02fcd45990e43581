package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"jobwatch/internal/config"
	"jobwatch/internal/logger"
	"jobwatch/internal/metrics"
	"jobwatch/internal/poll"
)

const (
	ExitOK         = 0
	ExitCLIError   = 1
	ExitConnection = 2
	ExitJobFailed  = 3
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

type ctxKey string

const envKey ctxKey = "env"

// env is the resolved runtime shared by subcommands.
type env struct {
	settings config.Settings
	logger   *slog.Logger
	logSink  io.Closer
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jobwatch",
		Short:         "Follow server-side job progress from the terminal",
		Long:          "jobwatch follows long-running jobs of the invoice application, either by polling their status endpoint or by listening to their event stream, and draws a live progress panel per job.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all subcommands
	pf := root.PersistentFlags()
	pf.String("base-url", config.DefaultBaseURL, "Application base URL")
	pf.String("session-cookie", "", "Session cookie value sent with every request")
	pf.String("cookie-name", config.DefaultCookieName, "Session cookie name")
	pf.Bool("debug", false, "Log every poll response and stream event")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")
	pf.String("log-file", "", "Write logs to this file instead of stderr")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := config.Init(root); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		s, err := config.Load()
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		e := &env{settings: s}

		var w io.Writer = os.Stderr
		if s.LogFile != "" {
			f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("open log file: %w", err)}
			}
			w, e.logSink = f, f
		}
		e.logger = logger.InitWriter(w, logger.ParseLevel(s.LogLevel), s.LogFormat)

		if s.MetricsAddr != "" {
			go func() {
				if err := metrics.Serve(cmd.Context(), s.MetricsAddr, e.logger); err != nil {
					e.logger.Error("metrics server failed", "error", err)
				}
			}()
		}
		cmd.SetContext(context.WithValue(cmd.Context(), envKey, e))
		return nil
	}
	// Subcommands
	root.AddCommand(newPollCmd())
	root.AddCommand(newStreamCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	_, err := run(ctx, newRootCmd())
	return err
}

// run executes root and closes the log file whatever the command returned;
// cobra skips post-run hooks after a failed RunE.
func run(ctx context.Context, root *cobra.Command) (*cobra.Command, error) {
	cmd, err := root.ExecuteContextC(ctx)
	if cmd == nil {
		return nil, err
	}
	if e := envFrom(cmd); e != nil && e.logSink != nil {
		if cerr := e.logSink.Close(); cerr != nil && err == nil {
			err = &ExitError{Code: ExitCLIError, Err: fmt.Errorf("close log file: %w", cerr)}
		}
	}
	return cmd, err
}

// Helpers
func envFrom(cmd *cobra.Command) *env {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	if e, ok := ctx.Value(envKey).(*env); ok {
		return e
	}
	return nil
}

func mustEnv(cmd *cobra.Command) *env {
	if e := envFrom(cmd); e != nil {
		return e
	}
	return &env{
		settings: config.Settings{BaseURL: config.DefaultBaseURL, CookieName: config.DefaultCookieName},
		logger:   logger.Get(),
	}
}

// watchLogger keeps stderr quiet while the interactive view owns the terminal.
func (e *env) watchLogger(useTUI bool) *slog.Logger {
	if useTUI && e.settings.LogFile == "" {
		return logger.Discard()
	}
	return e.logger
}

func newClient(e *env) (*poll.Client, error) {
	var opts []poll.ClientOption
	if e.settings.SessionCookie != "" {
		opts = append(opts, poll.WithSessionCookie(e.settings.CookieName, e.settings.SessionCookie))
	}
	c, err := poll.NewClient(e.settings.BaseURL, opts...)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: fmt.Errorf("invalid --base-url: %w", err)}
	}
	return c, nil
}

// connectionError maps a request failure to an exit error.
func connectionError(err error) error {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExitError{Code: ExitConnection, Err: err}
}
