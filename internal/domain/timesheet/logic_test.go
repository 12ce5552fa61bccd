package timesheet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPeriodFor(t *testing.T) {
	cases := map[string]struct {
		date  time.Time
		start string
	}{
		"monday":          {time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "2026-03-02"},
		"thursday":        {time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC), "2026-03-02"},
		"sunday":          {time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), "2026-03-02"},
		"across february": {time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "2026-02-23"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			start, end := PeriodFor(tc.date)
			if got := start.Format("2006-01-02"); got != tc.start {
				t.Fatalf("expected start %s, got %s", tc.start, got)
			}
			if start.Weekday() != time.Monday || end.Weekday() != time.Sunday {
				t.Fatalf("expected monday..sunday, got %s..%s", start.Weekday(), end.Weekday())
			}
			if end.Sub(start) != 6*24*time.Hour {
				t.Fatalf("expected a seven day window, got %v", end.Sub(start))
			}
		})
	}
}

func TestDayTotalSkipsReplacedTask(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	logs := []Worklog{
		{WorkDate: day, Task: "build", Hours: decimal.NewFromInt(3)},
		{WorkDate: day, Task: "review", Hours: decimal.NewFromInt(2)},
		{WorkDate: day.AddDate(0, 0, 1), Task: "build", Hours: decimal.NewFromInt(8)},
	}
	if got := dayTotal(logs, day, "build").String(); got != "2" {
		t.Fatalf("expected 2, got %s", got)
	}
	if got := dayTotal(logs, day, "other").String(); got != "5" {
		t.Fatalf("expected 5, got %s", got)
	}
}

func TestApprovalPermission(t *testing.T) {
	if approvalPermission(1, 2) != "timesheet.approve.l1" {
		t.Fatal("single level always needs l1")
	}
	if approvalPermission(2, 2) != "timesheet.approve.l2" {
		t.Fatal("second level needs l2")
	}
}
