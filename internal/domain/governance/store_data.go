package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"coreops/internal/platform/db"
)

type Store struct {
	DB db.Queryer
}

func NewStore(q db.Queryer) *Store {
	return &Store{DB: q}
}

// monthLockClass namespaces the advisory locks taken per month.
const monthLockClass int32 = 0x4d43

func monthLockKey(monthEnd time.Time) int32 {
	return int32(monthEnd.Year()*100 + int(monthEnd.Month()))
}

// LockMonth serializes guards against closing through a transaction-scoped
// advisory lock, shared for guards and exclusive for closing. Guards never
// write: a month without a row is OPEN. Only the exclusive path creates the
// row so that MarkClosed has something to flip.
func (s *Store) LockMonth(ctx context.Context, monthEnd time.Time, exclusive bool) (MonthClose, error) {
	q := db.QueryerFromContext(ctx, s.DB)
	lockFn := "pg_advisory_xact_lock_shared"
	if exclusive {
		lockFn = "pg_advisory_xact_lock"
	}
	if _, err := q.Exec(ctx, "SELECT "+lockFn+"($1, $2)", monthLockClass, monthLockKey(monthEnd)); err != nil {
		return MonthClose{}, fmt.Errorf("governance: lock month: %w", err)
	}

	lock := ""
	if exclusive {
		if _, err := q.Exec(ctx, `
      INSERT INTO month_close (month_end, status)
      VALUES ($1, 'OPEN')
      ON CONFLICT (month_end) DO NOTHING
    `, monthEnd); err != nil {
			return MonthClose{}, fmt.Errorf("governance: ensure month row: %w", err)
		}
		lock = " FOR UPDATE"
	}

	var rec MonthClose
	var closedBy *string
	err := q.QueryRow(ctx, `
    SELECT month_end, status, closed_at, closed_by, reason
    FROM month_close
    WHERE month_end = $1`+lock, monthEnd).Scan(&rec.MonthEnd, &rec.Status, &rec.ClosedAt, &closedBy, &rec.Reason)
	if errors.Is(err, pgx.ErrNoRows) && !exclusive {
		monthEnd = monthEnd.UTC()
		return MonthClose{MonthEnd: monthEnd, Month: MonthKey(monthEnd), Status: StatusOpen}, nil
	}
	if err != nil {
		return MonthClose{}, fmt.Errorf("governance: read month: %w", err)
	}
	if closedBy != nil {
		rec.ClosedBy = *closedBy
	}
	rec.MonthEnd = rec.MonthEnd.UTC()
	rec.Month = MonthKey(rec.MonthEnd)
	return rec, nil
}

func (s *Store) MarkClosed(ctx context.Context, rec MonthClose) error {
	tag, err := db.QueryerFromContext(ctx, s.DB).Exec(ctx, `
    UPDATE month_close
    SET status = 'CLOSED', closed_at = $2, closed_by = $3, reason = $4
    WHERE month_end = $1 AND status = 'OPEN'
  `, rec.MonthEnd, rec.ClosedAt, rec.ClosedBy, rec.Reason)
	if err != nil {
		return fmt.Errorf("governance: close month: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("governance: month %s was not open", MonthKey(rec.MonthEnd))
	}
	return nil
}

func (s *Store) List(ctx context.Context, year int) ([]MonthClose, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, `
    SELECT month_end, status, closed_at, closed_by, reason
    FROM month_close
    WHERE EXTRACT(YEAR FROM month_end) = $1
    ORDER BY month_end
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MonthClose{}
	for rows.Next() {
		var rec MonthClose
		var closedBy *string
		if err := rows.Scan(&rec.MonthEnd, &rec.Status, &rec.ClosedAt, &closedBy, &rec.Reason); err != nil {
			return nil, err
		}
		if closedBy != nil {
			rec.ClosedBy = *closedBy
		}
		rec.MonthEnd = rec.MonthEnd.UTC()
		rec.Month = MonthKey(rec.MonthEnd)
		out = append(out, rec)
	}
	return out, rows.Err()
}
