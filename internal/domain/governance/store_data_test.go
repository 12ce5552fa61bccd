package governance

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkClosedRejectsMonthThatIsNotOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	monthEnd := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	closedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE month_close").
		WithArgs(monthEnd, &closedAt, "admin-1", "payroll finalized").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewStore(mock).MarkClosed(t.Context(), MonthClose{
		MonthEnd: monthEnd,
		ClosedAt: &closedAt,
		ClosedBy: "admin-1",
		Reason:   "payroll finalized",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2026-02")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockMonthSharedTreatsMissingRowAsOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	monthEnd := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("pg_advisory_xact_lock_shared").
		WithArgs(monthLockClass, int32(202602)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT month_end").WithArgs(monthEnd).WillReturnError(pgx.ErrNoRows)

	rec, err := NewStore(mock).LockMonth(t.Context(), monthEnd, false)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, rec.Status)
	assert.Equal(t, "2026-02", rec.Month)
	require.NoError(t, mock.ExpectationsWereMet(), "guards must not insert month rows")
}

func TestLockMonthExclusiveStopsWhenRowCannotBeEnsured(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	monthEnd := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	boom := errors.New("connection reset")
	mock.ExpectExec(`pg_advisory_xact_lock\(`).
		WithArgs(monthLockClass, int32(202604)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO month_close").WithArgs(monthEnd).WillReturnError(boom)

	_, err = NewStore(mock).LockMonth(t.Context(), monthEnd, true)
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardReadsLeaveRegistryUntouched(t *testing.T) {
	svc, store, rec := newTestService()
	mar := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.Guard(t.Context(), employee, "", "", mar)
	require.NoError(t, err)
	assert.Empty(t, store.months)
	assert.Empty(t, rec.entries)
}
