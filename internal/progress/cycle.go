// Package progress tracks the rolling 20-day engagement cycle that gates the
// periodic nutrition report. It is a pure state machine over dated meal
// activity; persistence and the report generation itself live elsewhere.
package progress

import (
	"math"
	"time"
)

// CycleLength is the number of calendar days in one progress cycle.
const CycleLength = 20

// EligibleActiveDays is the number of distinct active days required before
// an evaluation may run.
const EligibleActiveDays = 18

// DayKey formats a time as the calendar-day key used in the active-day set.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Evaluation is the stored outcome of one cycle's progress report. At most
// one is retained per user: rollover replaces it, never appends.
type Evaluation struct {
	Text       string    `json:"text"`
	CycleStart string    `json:"cycle_start"`
	CreatedAt  time.Time `json:"created_at"`
}

// Cycle is the persisted progress document. StartDate is empty until the
// user's first-ever meal exists.
type Cycle struct {
	StartDate      string          `json:"cycle_start,omitempty"`
	ActiveDays     map[string]bool `json:"active_days,omitempty"`
	LastEvaluation *Evaluation     `json:"last_evaluation,omitempty"`
}

// Evaluated reports whether an evaluation is stored for the current cycle.
// An evaluation carried over from a previous cycle does not count.
func (c *Cycle) Evaluated() bool {
	return c.LastEvaluation != nil && c.LastEvaluation.CycleStart == c.StartDate
}

// Snapshot is the recomputed view of a cycle at a point in time.
type Snapshot struct {
	StartDate  time.Time
	DayFlags   [CycleLength]bool
	ActiveDays int
	TotalDays  int
	Evaluated  bool
	Eligible   bool
}

// Recompute rescans the meal history and brings the cycle up to date as of
// now. It anchors a fresh cycle on the first-ever meal's calendar day,
// recomputes the active-day flags from meals inside the window, and rolls
// the cycle over once 20 days have elapsed and an evaluation exists. The
// returned changed flag tells the caller whether the document needs a
// write; recomputation that lands on identical state must not cause one.
func Recompute(c *Cycle, mealTimes []time.Time, now time.Time) (*Snapshot, bool) {
	changed := false

	if c.StartDate == "" {
		first, ok := earliestDay(mealTimes)
		if !ok {
			// No cycle and no meals: nothing to track yet.
			return nil, false
		}
		c.StartDate = DayKey(first)
		c.ActiveDays = nil
		changed = true
	}

	start, err := time.ParseInLocation("2006-01-02", c.StartDate, now.Location())
	if err != nil {
		// Corrupt start date: re-anchor on today rather than wedge.
		start = startOfDay(now)
		c.StartDate = DayKey(start)
		c.ActiveDays = nil
		changed = true
	}

	daysSince := daysBetween(start, now)

	// Rollover: cycle complete and evaluated. The evaluation is retained as
	// the single most recent one; the active-day history is discarded.
	if daysSince >= CycleLength && c.Evaluated() {
		c.StartDate = DayKey(now)
		c.ActiveDays = nil
		start = startOfDay(now)
		daysSince = 0
		changed = true
	}

	active := activeDaysInWindow(mealTimes, start)
	if !sameDaySet(active, c.ActiveDays) {
		c.ActiveDays = active
		changed = true
	}

	snap := &Snapshot{
		StartDate: start,
		Evaluated: c.Evaluated(),
	}
	for key := range active {
		day, err := time.ParseInLocation("2006-01-02", key, now.Location())
		if err != nil {
			continue
		}
		idx := daysBetween(start, day)
		if idx >= 0 && idx < CycleLength {
			snap.DayFlags[idx] = true
			snap.ActiveDays++
		}
	}

	snap.TotalDays = daysSince + 1
	if snap.TotalDays > CycleLength {
		snap.TotalDays = CycleLength
	}
	snap.Eligible = snap.ActiveDays >= EligibleActiveDays && !snap.Evaluated

	return snap, changed
}

// MarkActive upserts a calendar day into the active-day set. It is
// idempotent and independent of the full recomputation path, so a meal save
// can call it without rescanning history. Reports whether the set changed.
func (c *Cycle) MarkActive(t time.Time) bool {
	if c.StartDate == "" {
		c.StartDate = DayKey(t)
	}
	key := DayKey(t)
	if c.ActiveDays[key] {
		return false
	}
	if c.ActiveDays == nil {
		c.ActiveDays = make(map[string]bool)
	}
	c.ActiveDays[key] = true
	return true
}

// StoreEvaluation records an evaluation for the current cycle.
func (c *Cycle) StoreEvaluation(text string, at time.Time) {
	c.LastEvaluation = &Evaluation{
		Text:       text,
		CycleStart: c.StartDate,
		CreatedAt:  at,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts whole calendar days from a to b, ignoring clock time.
// Rounding absorbs the off-by-an-hour midnights a DST transition produces.
func daysBetween(a, b time.Time) int {
	return int(math.Round(startOfDay(b).Sub(startOfDay(a)).Hours() / 24))
}

func earliestDay(times []time.Time) (time.Time, bool) {
	if len(times) == 0 {
		return time.Time{}, false
	}
	first := times[0]
	for _, t := range times[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return first, true
}

// activeDaysInWindow returns the day keys inside [start, start+20) that
// have at least one meal.
func activeDaysInWindow(mealTimes []time.Time, start time.Time) map[string]bool {
	active := make(map[string]bool)
	for _, t := range mealTimes {
		idx := daysBetween(start, t)
		if idx >= 0 && idx < CycleLength {
			active[DayKey(t)] = true
		}
	}
	return active
}

func sameDaySet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
