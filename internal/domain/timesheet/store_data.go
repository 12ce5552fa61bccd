package timesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coreops/internal/domain/apperr"
	"coreops/internal/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Store struct {
	DB db.Queryer
}

func NewStore(q db.Queryer) *Store {
	return &Store{DB: q}
}

const headerColumns = `id, employee_id, period_start, period_end, status, pending_approval_level, created_at, updated_at`

func scanHeader(row pgx.Row) (Timesheet, error) {
	var ts Timesheet
	err := row.Scan(&ts.ID, &ts.EmployeeID, &ts.PeriodStart, &ts.PeriodEnd, &ts.Status, &ts.PendingApprovalLevel, &ts.CreatedAt, &ts.UpdatedAt)
	ts.PeriodStart = ts.PeriodStart.UTC()
	ts.PeriodEnd = ts.PeriodEnd.UTC()
	return ts, err
}

func (s *Store) Get(ctx context.Context, id string) (Timesheet, error) {
	ts, err := s.get(ctx, id, "")
	if err != nil {
		return Timesheet{}, err
	}
	ts.Worklogs, err = s.ListWorklogs(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	return ts, nil
}

func (s *Store) GetForUpdate(ctx context.Context, id string) (Timesheet, error) {
	return s.get(ctx, id, " FOR UPDATE")
}

func (s *Store) get(ctx context.Context, id, lock string) (Timesheet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Timesheet{}, apperr.NotFound("timesheet", id)
	}
	ts, err := scanHeader(db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, `
    SELECT `+headerColumns+`
    FROM timesheets
    WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Timesheet{}, apperr.NotFound("timesheet", id)
	}
	if err != nil {
		return Timesheet{}, fmt.Errorf("timesheet: get: %w", err)
	}
	ts.History, err = s.history(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	return ts, nil
}

func (s *Store) FindByPeriodForUpdate(ctx context.Context, employeeID string, periodStart time.Time) (Timesheet, bool, error) {
	ts, err := scanHeader(db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, `
    SELECT `+headerColumns+`
    FROM timesheets
    WHERE employee_id = $1 AND period_start = $2
    FOR UPDATE
  `, employeeID, periodStart))
	if errors.Is(err, pgx.ErrNoRows) {
		return Timesheet{}, false, nil
	}
	if err != nil {
		return Timesheet{}, false, fmt.Errorf("timesheet: find by period: %w", err)
	}
	ts.History, err = s.history(ctx, ts.ID)
	if err != nil {
		return Timesheet{}, false, err
	}
	return ts, true, nil
}

func (s *Store) history(ctx context.Context, id string) ([]Transition, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, `
    SELECT status, level, actor_id, reason, override, occurred_at
    FROM timesheet_history
    WHERE timesheet_id = $1
    ORDER BY id
  `, id)
	if err != nil {
		return nil, fmt.Errorf("timesheet: load history: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.Status, &tr.Level, &tr.ActorID, &tr.Reason, &tr.Override, &tr.At); err != nil {
			return nil, err
		}
		tr.At = tr.At.UTC()
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, ts Timesheet) (bool, error) {
	q := db.QueryerFromContext(ctx, s.DB)
	tag, err := q.Exec(ctx, `
    INSERT INTO timesheets (id, employee_id, period_start, period_end, status, pending_approval_level, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (employee_id, period_start) DO NOTHING
  `, ts.ID, ts.EmployeeID, ts.PeriodStart, ts.PeriodEnd, ts.Status, ts.PendingApprovalLevel, ts.CreatedAt, ts.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("timesheet: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	for _, tr := range ts.History {
		if err := insertHistory(ctx, q, ts.ID, tr); err != nil {
			return false, err
		}
	}
	return true, nil
}

func insertHistory(ctx context.Context, q db.Queryer, id string, tr Transition) error {
	_, err := q.Exec(ctx, `
    INSERT INTO timesheet_history (timesheet_id, status, level, actor_id, reason, override, occurred_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, id, tr.Status, tr.Level, tr.ActorID, tr.Reason, tr.Override, tr.At)
	if err != nil {
		return fmt.Errorf("timesheet: insert history: %w", err)
	}
	return nil
}

func (s *Store) UpdateState(ctx context.Context, ts Timesheet, tr Transition) error {
	q := db.QueryerFromContext(ctx, s.DB)
	if _, err := q.Exec(ctx, `
    UPDATE timesheets
    SET status = $2, pending_approval_level = $3, updated_at = $4
    WHERE id = $1
  `, ts.ID, ts.Status, ts.PendingApprovalLevel, ts.UpdatedAt); err != nil {
		return fmt.Errorf("timesheet: update: %w", err)
	}
	return insertHistory(ctx, q, ts.ID, tr)
}

func (s *Store) ListWorklogs(ctx context.Context, timesheetID string) ([]Worklog, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, `
    SELECT id, timesheet_id, work_date, task, hours, description, updated_at
    FROM timesheet_worklogs
    WHERE timesheet_id = $1
    ORDER BY work_date, task
  `, timesheetID)
	if err != nil {
		return nil, fmt.Errorf("timesheet: list worklogs: %w", err)
	}
	defer rows.Close()

	logs := []Worklog{}
	for rows.Next() {
		var w Worklog
		if err := rows.Scan(&w.ID, &w.TimesheetID, &w.WorkDate, &w.Task, &w.Hours, &w.Description, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.WorkDate = w.WorkDate.UTC()
		logs = append(logs, w)
	}
	return logs, rows.Err()
}

// UpsertWorklog keys entries by (timesheet, date, task); a second write for the
// same key replaces hours and description.
func (s *Store) UpsertWorklog(ctx context.Context, w Worklog) (Worklog, error) {
	err := db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, `
    INSERT INTO timesheet_worklogs (id, timesheet_id, work_date, task, hours, description, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (timesheet_id, work_date, task)
    DO UPDATE SET hours = EXCLUDED.hours, description = EXCLUDED.description, updated_at = EXCLUDED.updated_at
    RETURNING id
  `, w.ID, w.TimesheetID, w.WorkDate, w.Task, w.Hours, w.Description, w.UpdatedAt).Scan(&w.ID)
	if err != nil {
		return Worklog{}, fmt.Errorf("timesheet: upsert worklog: %w", err)
	}
	return w, nil
}

func (s *Store) ListSubmitted(ctx context.Context, limit, offset int) (QueueList, error) {
	q := db.QueryerFromContext(ctx, s.DB)
	out := QueueList{Items: []Timesheet{}}
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM timesheets WHERE status = 'SUBMITTED'`).Scan(&out.Total); err != nil {
		return QueueList{}, fmt.Errorf("timesheet: count queue: %w", err)
	}
	rows, err := q.Query(ctx, `
    SELECT `+headerColumns+`
    FROM timesheets
    WHERE status = 'SUBMITTED'
    ORDER BY period_start, updated_at
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return QueueList{}, fmt.Errorf("timesheet: list queue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ts, err := scanHeader(rows)
		if err != nil {
			return QueueList{}, err
		}
		out.Items = append(out.Items, ts)
	}
	return out, rows.Err()
}
