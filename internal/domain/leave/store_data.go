package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const typeColumns = `id, code, name, is_paid, supports_half_day, affects_payroll, deduction_rule, is_active, version, created_at, updated_at`

func scanType(row pgx.Row) (LeaveType, error) {
	var t LeaveType
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.IsPaid, &t.SupportsHalfDay, &t.AffectsPayroll,
		&t.DeductionRule, &t.IsActive, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) ListTypes(ctx context.Context) ([]LeaveType, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, `
    SELECT `+typeColumns+`
    FROM leave_types
    ORDER BY code
  `)
	if err != nil {
		return nil, fmt.Errorf("leave: list types: %w", err)
	}
	defer rows.Close()

	types := []LeaveType{}
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) GetType(ctx context.Context, id string) (LeaveType, error) {
	return s.getType(ctx, id, "")
}

func (s *Store) GetTypeForUpdate(ctx context.Context, id string) (LeaveType, error) {
	return s.getType(ctx, id, " FOR UPDATE")
}

func (s *Store) getType(ctx context.Context, id, lock string) (LeaveType, error) {
	if _, err := uuid.Parse(id); err != nil {
		return LeaveType{}, apperr.NotFound("leave type", id)
	}
	t, err := scanType(db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, `
    SELECT `+typeColumns+`
    FROM leave_types
    WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveType{}, apperr.NotFound("leave type", id)
	}
	if err != nil {
		return LeaveType{}, fmt.Errorf("leave: get type: %w", err)
	}
	return t, nil
}

func (s *Store) CodeTaken(ctx context.Context, code, excludeID string) (bool, error) {
	var taken bool
	err := db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM leave_types WHERE code = $1 AND id::text <> $2)
  `, code, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("leave: check code: %w", err)
	}
	return taken, nil
}

func (s *Store) CreateType(ctx context.Context, t LeaveType) error {
	_, err := db.QueryerFromContext(ctx, s.DB).Exec(ctx, `
    INSERT INTO leave_types (id, code, name, is_paid, supports_half_day, affects_payroll, deduction_rule, is_active, version, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, t.ID, t.Code, t.Name, t.IsPaid, t.SupportsHalfDay, t.AffectsPayroll, t.DeductionRule, t.IsActive, t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("leave: create type: %w", err)
	}
	return nil
}

// UpdateType writes t, expecting the stored row to be one version behind.
func (s *Store) UpdateType(ctx context.Context, t LeaveType) error {
	tag, err := db.QueryerFromContext(ctx, s.DB).Exec(ctx, `
    UPDATE leave_types
    SET code = $2, name = $3, is_paid = $4, supports_half_day = $5, affects_payroll = $6,
        deduction_rule = $7, is_active = $8, version = $9, updated_at = $10
    WHERE id = $1 AND version = $9 - 1
  `, t.ID, t.Code, t.Name, t.IsPaid, t.SupportsHalfDay, t.AffectsPayroll, t.DeductionRule, t.IsActive, t.Version, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("leave: update type: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return apperr.VersionConflict(t.Version - 1)
	}
	return nil
}

// Seed installs the default leave types when none exist.
func (s *Store) Seed(ctx context.Context) error {
	defaults := []LeaveType{
		{Code: "ANNUAL", Name: "Annual Leave", IsPaid: true, SupportsHalfDay: true, DeductionRule: "BALANCE"},
		{Code: "SICK", Name: "Sick Leave", IsPaid: true, SupportsHalfDay: true, DeductionRule: "BALANCE"},
		{Code: "UNPAID", Name: "Unpaid Leave", IsPaid: false, SupportsHalfDay: true, AffectsPayroll: true, DeductionRule: "NONE"},
	}
	q := db.QueryerFromContext(ctx, s.DB)
	for _, t := range defaults {
		if _, err := q.Exec(ctx, `
      INSERT INTO leave_types (id, code, name, is_paid, supports_half_day, affects_payroll, deduction_rule)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      ON CONFLICT (code) DO NOTHING
    `, uuid.NewString(), t.Code, t.Name, t.IsPaid, t.SupportsHalfDay, t.AffectsPayroll, t.DeductionRule); err != nil {
			return fmt.Errorf("leave: seed type %s: %w", t.Code, err)
		}
	}
	return nil
}

const balanceColumns = `id, employee_id, leave_type_id, year, opening_balance, granted_balance, consumed_balance, updated_at`

func scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	err := row.Scan(&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Year, &b.Opening, &b.Granted, &b.Consumed, &b.UpdatedAt)
	return b, err
}

func (s *Store) GetBalance(ctx context.Context, employeeID, leaveTypeID string, year int) (Balance, bool, error) {
	return s.getBalance(ctx, employeeID, leaveTypeID, year, "")
}

func (s *Store) GetBalanceForUpdate(ctx context.Context, employeeID, leaveTypeID string, year int) (Balance, bool, error) {
	return s.getBalance(ctx, employeeID, leaveTypeID, year, " FOR UPDATE")
}

func (s *Store) getBalance(ctx context.Context, employeeID, leaveTypeID string, year int, lock string) (Balance, bool, error) {
	b, err := scanBalance(db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3`+lock, employeeID, leaveTypeID, year))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, false, nil
	}
	if err != nil {
		return Balance{}, false, fmt.Errorf("leave: get balance: %w", err)
	}
	return b, true, nil
}

func (s *Store) InsertBalance(ctx context.Context, b Balance) error {
	_, err := db.QueryerFromContext(ctx, s.DB).Exec(ctx, `
    INSERT INTO leave_balances (id, employee_id, leave_type_id, year, opening_balance, granted_balance, consumed_balance, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, b.ID, b.EmployeeID, b.LeaveTypeID, b.Year, b.Opening, b.Granted, b.Consumed, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("leave: insert balance: %w", err)
	}
	return nil
}

func (s *Store) UpdateBalance(ctx context.Context, b Balance) error {
	_, err := db.QueryerFromContext(ctx, s.DB).Exec(ctx, `
    UPDATE leave_balances
    SET opening_balance = $2, granted_balance = $3, consumed_balance = $4, updated_at = $5
    WHERE id = $1
  `, b.ID, b.Opening, b.Granted, b.Consumed, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("leave: update balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND year = $2
    ORDER BY leave_type_id
  `, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("leave: list balances: %w", err)
	}
	defer rows.Close()

	balances := []Balance{}
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *Store) InsertRequest(ctx context.Context, r Request) error {
	q := db.QueryerFromContext(ctx, s.DB)
	_, err := q.Exec(ctx, `
    INSERT INTO leave_requests (id, employee_id, leave_type_id, start_date, end_date, unit, half_day_part, units, reason, status, pending_approval_level, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, r.ID, r.EmployeeID, r.LeaveTypeID, r.StartDate, r.EndDate, r.Unit, nullablePart(r.HalfDayPart), r.Units,
		r.Reason, r.Status, r.PendingApprovalLevel, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("leave: insert request: %w", err)
	}
	for _, tr := range r.History {
		if err := s.insertHistory(ctx, q, r.ID, tr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertHistory(ctx context.Context, q db.Queryer, requestID string, tr Transition) error {
	_, err := q.Exec(ctx, `
    INSERT INTO leave_request_history (request_id, status, level, actor_id, reason, override, occurred_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, requestID, tr.Status, tr.Level, tr.ActorID, tr.Reason, tr.Override, tr.At)
	if err != nil {
		return fmt.Errorf("leave: insert history: %w", err)
	}
	return nil
}

func (s *Store) UpdateRequestState(ctx context.Context, r Request, tr Transition) error {
	q := db.QueryerFromContext(ctx, s.DB)
	if _, err := q.Exec(ctx, `
    UPDATE leave_requests
    SET status = $2, pending_approval_level = $3, updated_at = $4
    WHERE id = $1
  `, r.ID, r.Status, r.PendingApprovalLevel, r.UpdatedAt); err != nil {
		return fmt.Errorf("leave: update request: %w", err)
	}
	return s.insertHistory(ctx, q, r.ID, tr)
}

const requestColumns = `id, employee_id, leave_type_id, start_date, end_date, unit, half_day_part, units, reason, status, pending_approval_level, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	var part *string
	err := row.Scan(&r.ID, &r.EmployeeID, &r.LeaveTypeID, &r.StartDate, &r.EndDate, &r.Unit, &part, &r.Units,
		&r.Reason, &r.Status, &r.PendingApprovalLevel, &r.CreatedAt, &r.UpdatedAt)
	if part != nil {
		r.HalfDayPart = HalfDayPart(*part)
	}
	r.StartDate = r.StartDate.UTC()
	r.EndDate = r.EndDate.UTC()
	return r, err
}

func (s *Store) GetRequest(ctx context.Context, id string) (Request, error) {
	return s.getRequest(ctx, id, "")
}

func (s *Store) GetRequestForUpdate(ctx context.Context, id string) (Request, error) {
	return s.getRequest(ctx, id, " FOR UPDATE")
}

func (s *Store) getRequest(ctx context.Context, id, lock string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, apperr.NotFound("leave request", id)
	}
	q := db.QueryerFromContext(ctx, s.DB)
	r, err := scanRequest(q.QueryRow(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, apperr.NotFound("leave request", id)
	}
	if err != nil {
		return Request{}, fmt.Errorf("leave: get request: %w", err)
	}

	rows, err := q.Query(ctx, `
    SELECT status, level, actor_id, reason, override, occurred_at
    FROM leave_request_history
    WHERE request_id = $1
    ORDER BY id
  `, id)
	if err != nil {
		return Request{}, fmt.Errorf("leave: load history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.Status, &tr.Level, &tr.ActorID, &tr.Reason, &tr.Override, &tr.At); err != nil {
			return Request{}, err
		}
		tr.At = tr.At.UTC()
		r.History = append(r.History, tr)
	}
	return r, rows.Err()
}

// ListRequests returns the page without history; callers fetch one request to
// see its timeline.
func (s *Store) ListRequests(ctx context.Context, filter ListFilter, limit, offset int) (RequestList, error) {
	where, args := buildRequestFilter(filter)
	q := db.QueryerFromContext(ctx, s.DB)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM leave_requests`+where, args...).Scan(&total); err != nil {
		return RequestList{}, fmt.Errorf("leave: count requests: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests`+where+fmt.Sprintf(`
    ORDER BY start_date DESC, created_at DESC
    LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return RequestList{}, fmt.Errorf("leave: list requests: %w", err)
	}
	defer rows.Close()

	out := RequestList{Items: []Request{}, Total: total}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return RequestList{}, err
		}
		out.Items = append(out.Items, r)
	}
	return out, rows.Err()
}

func buildRequestFilter(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.EmployeeID != "" {
		add("employee_id = $%d", filter.EmployeeID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("end_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_date <= $%d", filter.To)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "\n    WHERE " + strings.Join(clauses, " AND "), args
}

func nullablePart(p HalfDayPart) any {
	if p == "" {
		return nil
	}
	return string(p)
}
