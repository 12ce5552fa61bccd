package leave

import (
	"errors"
	"testing"
	"time"

	"coreops/internal/domain/apperr"
)

func TestCalculateDays(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	days, err := CalculateDays(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 1 {
		t.Fatalf("expected 1 day, got %v", days)
	}

	end = time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
	days, err = CalculateDays(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 3 {
		t.Fatalf("expected 3 days, got %v", days)
	}
}

func TestCalculateDaysInvalid(t *testing.T) {
	start := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)

	_, err := CalculateDays(start, end)
	if err == nil {
		t.Fatal("expected error for invalid range")
	}
}

func TestCalculateDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	start := time.Date(2026, 3, 28, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 30, 0, 0, 0, 0, loc)

	days, err := CalculateDays(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 3 {
		t.Fatalf("expected 3 days across DST change, got %v", days)
	}
}

func TestCalculateUnits(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	units, err := CalculateUnits(day, day.AddDate(0, 0, 2), UnitFullDay)
	if err != nil || units.String() != "3" {
		t.Fatalf("expected 3 units, got %s (%v)", units, err)
	}
	units, err = CalculateUnits(day, day, UnitHalfDay)
	if err != nil || units.String() != "0.5" {
		t.Fatalf("expected 0.5 units, got %s (%v)", units, err)
	}
	if _, err := CalculateUnits(day, day.AddDate(0, 0, 1), UnitHalfDay); !errors.Is(err, errHalfDaySpansDays) {
		t.Fatalf("expected half-day span error, got %v", err)
	}
}

func TestValidateSubmit(t *testing.T) {
	today := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	policy := Policy{ApprovalLevels: 1, AllowHalfDay: true, AllowBackdated: true, BackdateLimitDays: 30}
	base := SubmitInput{
		LeaveTypeID: "t1",
		StartDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Unit:        UnitFullDay,
	}

	cases := map[string]struct {
		mutate func(*SubmitInput, *Policy)
		field  string
	}{
		"missing type":         {func(in *SubmitInput, _ *Policy) { in.LeaveTypeID = "" }, "leaveTypeId"},
		"end before start":     {func(in *SubmitInput, _ *Policy) { in.EndDate = in.StartDate.AddDate(0, 0, -1) }, "endDate"},
		"half day two dates":   {func(in *SubmitInput, _ *Policy) { in.Unit, in.HalfDayPart, in.EndDate = UnitHalfDay, HalfDayAM, in.StartDate.AddDate(0, 0, 1) }, "endDate"},
		"half day no part":     {func(in *SubmitInput, _ *Policy) { in.Unit = UnitHalfDay }, "halfDayPart"},
		"part on full day":     {func(in *SubmitInput, _ *Policy) { in.HalfDayPart = HalfDayPM }, "halfDayPart"},
		"half day disabled":    {func(in *SubmitInput, p *Policy) { in.Unit, in.HalfDayPart, p.AllowHalfDay = UnitHalfDay, HalfDayAM, false }, "unit"},
		"unknown unit":         {func(in *SubmitInput, _ *Policy) { in.Unit = "HOURLY" }, "unit"},
		"backdated disallowed": {func(in *SubmitInput, p *Policy) { in.StartDate, p.AllowBackdated = today.AddDate(0, 0, -1), false }, "startDate"},
		"beyond backdate":      {func(in *SubmitInput, _ *Policy) { in.StartDate = today.AddDate(0, 0, -31) }, "startDate"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in, p := base, policy
			tc.mutate(&in, &p)
			_, err := validateSubmit(in, p, today)
			if !errors.Is(err, apperr.ErrValidationFailed) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := apperr.DetailsOf(err)["field"]; got != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, got)
			}
		})
	}

	units, err := validateSubmit(base, policy, today)
	if err != nil || units.String() != "1" {
		t.Fatalf("expected valid single day, got %s (%v)", units, err)
	}
}

func TestApprovalPermissions(t *testing.T) {
	if got := approvalPermissions(1, 1); len(got) != 2 {
		t.Fatalf("single level should accept either approver, got %v", got)
	}
	if got := approvalPermissions(2, 1); len(got) != 1 || got[0] != "leave.approve.l1" {
		t.Fatalf("unexpected level one permissions %v", got)
	}
	if got := approvalPermissions(2, 2); len(got) != 1 || got[0] != "leave.approve.l2" {
		t.Fatalf("unexpected level two permissions %v", got)
	}
}
