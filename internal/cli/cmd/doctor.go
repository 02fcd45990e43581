package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"jobwatch/internal/config"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Check configuration and connectivity to the application",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := mustEnv(cmd)
			out := cmd.OutOrStdout()

			cfg := config.File()
			if cfg == "" {
				cfg = "(none)"
			}
			fmt.Fprintf(out, "Config:   %s\n", cfg)
			fmt.Fprintf(out, "Base URL: %s\n", e.settings.BaseURL)
			if e.settings.SessionCookie == "" {
				fmt.Fprintln(out, "Session:  not set")
			} else {
				fmt.Fprintf(out, "Session:  %s cookie set\n", e.settings.CookieName)
			}

			client, err := newClient(e)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
			defer cancel()
			jobs, err := client.List(ctx)
			if err != nil {
				fmt.Fprintln(out, "API:      unreachable")
				return connectionError(err)
			}
			fmt.Fprintf(out, "API:      ok (%d jobs visible)\n", len(jobs))
			return nil
		},
	}
}
