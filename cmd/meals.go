package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/edanos/mealscan/internal/store"
)

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "Inspect the meal log",
}

var (
	mealsFrom  string
	mealsTo    string
	mealsLimit int
)

var mealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged meals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter := store.MealFilter{Limit: mealsLimit}
		if mealsFrom != "" {
			if filter.From, err = time.Parse("2006-01-02", mealsFrom); err != nil {
				return eris.Wrap(err, "parse --from")
			}
		}
		if mealsTo != "" {
			if filter.To, err = time.Parse("2006-01-02", mealsTo); err != nil {
				return eris.Wrap(err, "parse --to")
			}
		}

		meals, err := st.ListMeals(ctx, filter)
		if err != nil {
			return err
		}
		if len(meals) == 0 {
			fmt.Fprintln(os.Stderr, "No meals found.")
			return nil
		}

		printMealList(os.Stdout, meals)
		return nil
	},
}

var mealsShowCmd = &cobra.Command{
	Use:   "show <meal-id>",
	Short: "Show a meal with per-ingredient nutrition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		m, err := st.GetMeal(ctx, args[0])
		if err != nil {
			return err
		}

		printMeal(os.Stdout, m)
		return nil
	},
}

var mealsDeleteCmd = &cobra.Command{
	Use:   "delete <meal-id>",
	Short: "Delete a logged meal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteMeal(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted meal %s\n", args[0])
		return nil
	},
}

func init() {
	mealsListCmd.Flags().StringVar(&mealsFrom, "from", "", "start date (YYYY-MM-DD)")
	mealsListCmd.Flags().StringVar(&mealsTo, "to", "", "end date, exclusive (YYYY-MM-DD)")
	mealsListCmd.Flags().IntVar(&mealsLimit, "limit", 50, "max meals to list")

	mealsCmd.AddCommand(mealsListCmd)
	mealsCmd.AddCommand(mealsShowCmd)
	mealsCmd.AddCommand(mealsDeleteCmd)
	rootCmd.AddCommand(mealsCmd)
}
