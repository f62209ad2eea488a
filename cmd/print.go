package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/progress"
)

func printMeal(w io.Writer, m *meal.Meal) {
	fmt.Fprintf(w, "%s  (%s, confidence %.2f)\n", m.Name, m.Classification, m.Confidence)
	fmt.Fprintf(w, "id: %s  logged: %s\n", m.ID, m.LoggedAt.Format("2006-01-02 15:04"))
	if m.ImageURL != "" {
		fmt.Fprintf(w, "image: %s\n", m.ImageURL)
	}
	if m.Processed {
		fmt.Fprintln(w, "flagged: highly processed")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nINGREDIENT\tID\tAMOUNT\tKCAL\tPROTEIN\tCARBS\tFAT")
	for _, ing := range m.Ingredients {
		cur := ing.Current()
		fmt.Fprintf(tw, "%s\t%s\t%.0f%s\t%.0f\t%.1f\t%.1f\t%.1f\n",
			ing.Name, ing.ID, ing.Amount, ing.Unit,
			cur[nutrition.FieldCalories], cur[nutrition.FieldProtein],
			cur[nutrition.FieldCarbs], cur[nutrition.FieldFat])
	}
	totals := m.Totals()
	fmt.Fprintf(tw, "TOTAL\t\t\t%.0f\t%.1f\t%.1f\t%.1f\n",
		totals[nutrition.FieldCalories], totals[nutrition.FieldProtein],
		totals[nutrition.FieldCarbs], totals[nutrition.FieldFat])
	tw.Flush() //nolint:errcheck
}

func printMealList(w io.Writer, meals []*meal.Meal) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGGED\tID\tNAME\tKCAL\tINGREDIENTS")
	for _, m := range meals {
		totals := m.Totals()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%d\n",
			m.LoggedAt.Format("2006-01-02 15:04"), m.ID, m.Name,
			totals[nutrition.FieldCalories], len(m.Ingredients))
	}
	tw.Flush() //nolint:errcheck
}

func printSnapshot(w io.Writer, snap *progress.Snapshot) {
	if snap == nil {
		fmt.Fprintln(w, "No meals logged yet; the first logged meal starts the cycle.")
		return
	}

	fmt.Fprintf(w, "Cycle started %s  (day %d of %d)\n",
		progress.DayKey(snap.StartDate), snap.TotalDays, progress.CycleLength)
	fmt.Fprintf(w, "Active days: %d  (need %d for an evaluation)\n",
		snap.ActiveDays, progress.EligibleActiveDays)

	fmt.Fprint(w, "Days: ")
	for _, active := range snap.DayFlags {
		if active {
			fmt.Fprint(w, "#")
		} else {
			fmt.Fprint(w, ".")
		}
	}
	fmt.Fprintln(w)

	switch {
	case snap.Evaluated:
		fmt.Fprintln(w, "This cycle has been evaluated.")
	case snap.Eligible:
		fmt.Fprintln(w, "Eligible for evaluation: run `mealscan progress evaluate`.")
	}
}
