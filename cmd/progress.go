package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edanos/mealscan/internal/pipeline"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the current 20-day logging cycle",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := e.reporter.Snapshot(ctx, time.Now())
		if err != nil {
			return err
		}

		printSnapshot(os.Stdout, snap)
		return nil
	},
}

var progressEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Generate the end-of-cycle evaluation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		text, err := e.reporter.Evaluate(ctx, time.Now())
		switch {
		case errors.Is(err, pipeline.ErrNotEligible):
			fmt.Fprintln(os.Stderr, "The cycle has not reached 18 active days yet.")
			return nil
		case errors.Is(err, pipeline.ErrAlreadyEvaluated):
			fmt.Fprintln(os.Stderr, "This cycle already has an evaluation; it will roll over once 20 days have passed.")
			return nil
		case err != nil:
			return err
		}

		fmt.Fprintln(os.Stdout, text)
		return nil
	},
}

func init() {
	progressCmd.AddCommand(progressEvaluateCmd)
	rootCmd.AddCommand(progressCmd)
}
