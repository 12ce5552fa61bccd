package governance

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MonthEnd returns the last calendar day of the month containing t, at UTC midnight.
func MonthEnd(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// ParseMonth accepts YYYY-MM and returns that month's end.
func ParseMonth(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM")
	}
	return MonthEnd(parsed), nil
}

// ConfirmationPhrase is what an operator must type to close a month,
// for example "CLOSE FEBRUARY 2026".
func ConfirmationPhrase(monthEnd time.Time) string {
	return fmt.Sprintf("CLOSE %s %d", strings.ToUpper(monthEnd.Month().String()), monthEnd.Year())
}

func ConfirmationMatches(monthEnd time.Time, typed string) bool {
	normalized := strings.Join(strings.Fields(strings.ToUpper(typed)), " ")
	return normalized == ConfirmationPhrase(monthEnd)
}

// MonthEnds lists the month ends covering every date given, in ascending order
// without duplicates. A start/end pair expands to every month in between.
func MonthEnds(dates ...time.Time) []time.Time {
	seen := map[time.Time]struct{}{}
	var out []time.Time
	add := func(t time.Time) {
		me := MonthEnd(t)
		if _, ok := seen[me]; ok {
			return
		}
		seen[me] = struct{}{}
		out = append(out, me)
	}
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		add(d)
	}
	sortTimes(out)
	if len(out) > 1 {
		first, last := out[0], out[len(out)-1]
		for cur := first.AddDate(0, 0, 1); cur.Before(last); cur = MonthEnd(cur).AddDate(0, 0, 1) {
			add(cur)
		}
		sortTimes(out)
	}
	return out
}

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}

func MonthKey(monthEnd time.Time) string {
	return monthEnd.Format("2006-01")
}
