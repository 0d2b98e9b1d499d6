package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/living-legends/internal/scheduler"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		if err := a.migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrated")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete generated stories and write the starter posts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		if err := a.migrate(); err != nil {
			return err
		}
		report, err := a.seeds().Reset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d, seeded %d\n", report.Deleted, len(report.Seeded))
		return nil
	},
}

var sweepTask string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one scheduler task (stories | states | refresh)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		if err := a.migrate(); err != nil {
			return err
		}
		return a.scheduler(a.seeds()).Tick(cmd.Context(), scheduler.Task(sweepTask))
	},
}

var runJobsCmd = &cobra.Command{
	Use:   "run-jobs",
	Short: "Run all due reply and evidence jobs once and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		n, err := a.jobQueue().RunDue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ran %d jobs\n", n)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepTask, "task", string(scheduler.TaskStates), "task to run")
}
