package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edanos/mealscan/internal/pipeline"
)

var lookupAt string

var lookupCmd = &cobra.Command{
	Use:   "lookup <product or dish>",
	Short: "Look up nutrition data for a named product",
	Long:  "Uses web search so the model can consult manufacturer listings and nutrition databases, then logs the result as a meal.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		loggedAt, err := parseLoggedAt(lookupAt)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		m, err := e.analyzer.Lookup(ctx, strings.Join(args, " "), loggedAt)
		if errors.Is(err, pipeline.ErrRejected) {
			fmt.Fprintln(os.Stderr, "No nutrition data found for that query; nothing was logged.")
			return nil
		}
		if err != nil {
			return err
		}

		printMeal(os.Stdout, m)
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupAt, "at", "", "log date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(lookupCmd)
}
