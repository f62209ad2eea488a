package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/pipeline"
)

var (
	analyzeText string
	analyzeAt   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image-file]",
	Short: "Analyze a meal photo or description",
	Long:  "Sends a meal photo (or with --text, a typed or transcribed description) to the model and logs the resulting meal.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && analyzeText == "" {
			return eris.New("provide an image file or --text")
		}

		loggedAt, err := parseLoggedAt(analyzeAt)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var m *meal.Meal
		if len(args) > 0 {
			data, readErr := os.ReadFile(args[0])
			if readErr != nil {
				return eris.Wrapf(readErr, "read image %s", args[0])
			}
			m, err = e.analyzer.AnalyzeImage(ctx, data, loggedAt)
		} else {
			m, err = e.analyzer.AnalyzeDescription(ctx, analyzeText, loggedAt)
		}
		if errors.Is(err, pipeline.ErrRejected) {
			fmt.Fprintln(os.Stderr, "No food detected in the input; nothing was logged.")
			return nil
		}
		if err != nil {
			return err
		}

		printMeal(os.Stdout, m)
		return nil
	},
}

// parseLoggedAt interprets --at as YYYY-MM-DD (local noon) or defaults to now.
func parseLoggedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "parse --at (want YYYY-MM-DD)")
	}
	return day.Add(12 * time.Hour), nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "meal description instead of an image")
	analyzeCmd.Flags().StringVar(&analyzeAt, "at", "", "log date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(analyzeCmd)
}
