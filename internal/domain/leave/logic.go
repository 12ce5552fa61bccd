package leave

import (
	"errors"
	"strings"
	"time"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/auth"

	"github.com/shopspring/decimal"
)

var (
	errEndBeforeStart   = errors.New("end date before start date")
	errHalfDaySpansDays = errors.New("half-day request must start and end on the same date")
)

var halfDay = decimal.RequireFromString("0.5")

// CalculateDays returns inclusive day count between start and end.
func CalculateDays(start, end time.Time) (int, error) {
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return 0, errEndBeforeStart
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

// CalculateUnits returns the leave units a request consumes: inclusive
// calendar days for FULL_DAY, 0.5 for a single HALF_DAY.
func CalculateUnits(start, end time.Time, unit Unit) (decimal.Decimal, error) {
	days, err := CalculateDays(start, end)
	if err != nil {
		return decimal.Zero, err
	}
	switch unit {
	case UnitFullDay:
		return decimal.NewFromInt(int64(days)), nil
	case UnitHalfDay:
		if days != 1 {
			return decimal.Zero, errHalfDaySpansDays
		}
		return halfDay, nil
	default:
		return decimal.Zero, errors.New("unknown unit " + string(unit))
	}
}

// dateOnly keeps the calendar date as written, whatever the location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// validateSubmit checks everything that does not need the database.
func validateSubmit(in SubmitInput, policy Policy, today time.Time) (decimal.Decimal, error) {
	if strings.TrimSpace(in.LeaveTypeID) == "" {
		return decimal.Zero, apperr.Validation("leaveTypeId", "is required")
	}
	if in.StartDate.IsZero() {
		return decimal.Zero, apperr.Validation("startDate", "is required")
	}
	if in.EndDate.IsZero() {
		return decimal.Zero, apperr.Validation("endDate", "is required")
	}
	switch in.Unit {
	case UnitFullDay:
		if in.HalfDayPart != "" {
			return decimal.Zero, apperr.Validation("halfDayPart", "is only allowed for HALF_DAY")
		}
	case UnitHalfDay:
		if !policy.AllowHalfDay {
			return decimal.Zero, apperr.Validation("unit", "half-day leave is disabled")
		}
		if in.HalfDayPart != HalfDayAM && in.HalfDayPart != HalfDayPM {
			return decimal.Zero, apperr.Validation("halfDayPart", "must be AM or PM")
		}
	default:
		return decimal.Zero, apperr.Validation("unit", "must be FULL_DAY or HALF_DAY")
	}

	units, err := CalculateUnits(in.StartDate, in.EndDate, in.Unit)
	switch {
	case errors.Is(err, errEndBeforeStart):
		return decimal.Zero, apperr.Validation("endDate", "must not be before startDate")
	case errors.Is(err, errHalfDaySpansDays):
		return decimal.Zero, apperr.Validation("endDate", "must equal startDate for HALF_DAY")
	case err != nil:
		return decimal.Zero, apperr.Validation("unit", err.Error())
	}

	start := dateOnly(in.StartDate)
	if start.Before(today) {
		if !policy.AllowBackdated {
			return decimal.Zero, apperr.Validation("startDate", "backdated leave is not allowed")
		}
		if policy.BackdateLimitDays > 0 && today.Sub(start) > time.Duration(policy.BackdateLimitDays)*24*time.Hour {
			return decimal.Zero, apperr.Validation("startDate", "is beyond the backdate limit")
		}
	}
	return units, nil
}

// approvalPermissions lists the permissions that may act on a request
// awaiting the given level.
func approvalPermissions(levels, pending int) []auth.Permission {
	if levels <= 1 {
		return []auth.Permission{auth.PermLeaveApproveL1, auth.PermLeaveApproveL2}
	}
	if pending >= 2 {
		return []auth.Permission{auth.PermLeaveApproveL2}
	}
	return []auth.Permission{auth.PermLeaveApproveL1}
}
