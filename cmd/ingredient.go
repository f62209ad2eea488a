package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var ingredientCmd = &cobra.Command{
	Use:   "ingredient",
	Short: "Adjust ingredients on a logged meal",
}

var ingredientSetCmd = &cobra.Command{
	Use:   "set <meal-id> <ingredient-id> <amount>",
	Short: "Set an ingredient amount and recompute the meal",
	Long:  "Rescales the ingredient's nutrition linearly from its analyzed values. Amounts are capped at ten times the analyzed amount.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		amount, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return eris.Wrap(err, "parse amount")
		}

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
		ing := m.Ingredient(args[1])
		if ing == nil {
			return eris.Errorf("ingredient not found: %s", args[1])
		}

		ing.SetAmount(amount)
		if err := st.UpdateMealIngredients(ctx, m); err != nil {
			return err
		}

		printMeal(os.Stdout, m)
		return nil
	},
}

var ingredientRangeCmd = &cobra.Command{
	Use:   "range <meal-id> <ingredient-id>",
	Short: "Show the suggested adjustment range for an ingredient",
	Args:  cobra.ExactArgs(2),
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
		ing := m.Ingredient(args[1])
		if ing == nil {
			return eris.Errorf("ingredient not found: %s", args[1])
		}

		lo, hi := ing.AdjustmentRange()
		fmt.Fprintf(os.Stdout, "%s: %.0f%s now, suggested range %.0f-%.0f%s\n",
			ing.Name, ing.Amount, ing.Unit, lo, hi, ing.Unit)
		return nil
	},
}

func init() {
	ingredientCmd.AddCommand(ingredientSetCmd)
	ingredientCmd.AddCommand(ingredientRangeCmd)
	rootCmd.AddCommand(ingredientCmd)
}
