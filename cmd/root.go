package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edanos/mealscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mealscan",
	Short: "Meal nutrition tracker",
	Long:  "Analyzes meal photos and descriptions with Claude, normalizes the results into per-ingredient nutrition records, and tracks logging progress in 20-day cycles.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
