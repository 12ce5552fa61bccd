package timesheet

import (
	"context"
	"time"
)

type StoreAPI interface {
	Get(ctx context.Context, id string) (Timesheet, error)
	GetForUpdate(ctx context.Context, id string) (Timesheet, error)
	FindByPeriodForUpdate(ctx context.Context, employeeID string, periodStart time.Time) (Timesheet, bool, error)
	// Insert reports false when another header for the same period won the race.
	Insert(ctx context.Context, ts Timesheet) (bool, error)
	UpdateState(ctx context.Context, ts Timesheet, tr Transition) error
	ListWorklogs(ctx context.Context, timesheetID string) ([]Worklog, error)
	UpsertWorklog(ctx context.Context, w Worklog) (Worklog, error)
	ListSubmitted(ctx context.Context, limit, offset int) (QueueList, error)
}
