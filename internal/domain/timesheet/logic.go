package timesheet

import (
	"strings"
	"time"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/auth"

	"github.com/shopspring/decimal"
)

// PeriodFor returns the Monday..Sunday week containing date.
func PeriodFor(date time.Time) (time.Time, time.Time) {
	day := dateOnly(date)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func inPeriod(ts Timesheet, date time.Time) bool {
	return !date.Before(ts.PeriodStart) && !date.After(ts.PeriodEnd)
}

func validateWorklog(in WorklogInput, maxHours decimal.Decimal, today time.Time) error {
	if in.WorkDate.IsZero() {
		return apperr.Validation("workDate", "is required")
	}
	if dateOnly(in.WorkDate).After(today) {
		return apperr.Validation("workDate", "must not be in the future")
	}
	if strings.TrimSpace(in.Task) == "" {
		return apperr.Validation("task", "is required")
	}
	if !in.Hours.IsPositive() {
		return apperr.Validation("hours", "must be positive")
	}
	// hours is NUMERIC(5,2); finer values would be rounded on write and
	// could push the stored day total past the maximum.
	if !in.Hours.Equal(in.Hours.Round(2)) {
		return apperr.Validation("hours", "must have at most 2 decimal places")
	}
	if in.Hours.GreaterThan(maxHours) {
		return apperr.Validation("hours", "exceeds the daily maximum of "+maxHours.String())
	}
	return nil
}

// dayTotal sums hours logged on date, skipping the entry for task that is
// about to be replaced.
func dayTotal(logs []Worklog, date time.Time, task string) decimal.Decimal {
	total := decimal.Zero
	for _, w := range logs {
		if !w.WorkDate.Equal(date) || w.Task == task {
			continue
		}
		total = total.Add(w.Hours)
	}
	return total
}

func approvalPermission(levels, pending int) auth.Permission {
	if levels > 1 && pending >= 2 {
		return auth.PermTimesheetApproveL2
	}
	return auth.PermTimesheetApproveL1
}
