package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"jobwatch/internal/progress"
	"jobwatch/internal/ui"
	"jobwatch/internal/util/format"
)

// apiTimeout bounds one-shot API calls made by jobs and doctor.
const apiTimeout = 15 * time.Second

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and manage job progress records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Show the most recent jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listJobs(cmd, false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "active",
		Short:         "Show pending and running jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listJobs(cmd, true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "delete <job-id>",
		Short:         "Delete a finished job's progress record",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE:          deleteJob,
	})
	return cmd
}

func listJobs(cmd *cobra.Command, activeOnly bool) error {
	e := mustEnv(cmd)
	client, err := newClient(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	var jobs []progress.Snapshot
	if activeOnly {
		jobs, err = client.Active(ctx)
	} else {
		jobs, err = client.List(ctx)
	}
	if err != nil {
		return connectionError(err)
	}
	renderJobs(cmd.OutOrStdout(), jobs)
	return nil
}

func renderJobs(w io.Writer, jobs []progress.Snapshot) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs.")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.JobID,
			ui.DisplayFor(j.Status).Label,
			format.Percent(format.ClampPercent(j.ProgressPercentage)),
			strconv.Itoa(j.SentUnits) + "/" + strconv.Itoa(j.TotalUnits),
			strconv.Itoa(j.FailedUnits),
			createdAt(j),
		})
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		// Column widths include the padding, which leaves room for the
		// truncation tail so full values are printed.
		StyleFunc(func(row, col int) lipgloss.Style { return cell }).
		Headers("JOB", "STATUS", "PROGRESS", "SENT", "ERRORS", "CREATED").
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

func createdAt(j progress.Snapshot) string {
	if j.CreatedAt == nil {
		return "-"
	}
	return j.CreatedAt.Local().Format("2006-01-02 15:04")
}

func deleteJob(cmd *cobra.Command, args []string) error {
	e := mustEnv(cmd)
	client, err := newClient(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	msg, err := client.Delete(ctx, args[0])
	if err != nil {
		return connectionError(err)
	}
	if msg == "" {
		msg = "deleted " + args[0]
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
