package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreops/internal/platform/clock"
	"coreops/internal/requestctx"
)

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func TestRecordStartsNewChain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := New(mock, clock.Fixed(now))

	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("LEAVE_REQUEST:r1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT hash FROM audit_log").WithArgs("LEAVE_REQUEST", "r1").WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO audit_log").WithArgs(anyArgs(13)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := requestctx.WithRequestID(context.Background(), "req-1")
	evt, err := svc.Record(ctx, Entry{
		ActorID:    "u1",
		Action:     "SUBMIT",
		EntityType: "LEAVE_REQUEST",
		EntityID:   "r1",
		After:      map[string]any{"status": "SUBMITTED"},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", evt.RequestID)
	assert.Empty(t, evt.PrevHash)
	assert.NotEmpty(t, evt.Hash)
	assert.Nil(t, evt.Before)
	assert.Equal(t, now, evt.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLinksToChainHead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := New(mock, clock.Fixed(time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)))

	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("LEAVE_REQUEST:r1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT hash FROM audit_log").WithArgs("LEAVE_REQUEST", "r1").
		WillReturnRows(pgxmock.NewRows([]string{"hash"}).AddRow("head"))
	mock.ExpectExec("INSERT INTO audit_log").WithArgs(anyArgs(13)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	evt, err := svc.Record(context.Background(), Entry{
		ActorID:    "u2",
		Action:     "APPROVE",
		EntityType: "LEAVE_REQUEST",
		EntityID:   "r1",
		Before:     map[string]any{"status": "SUBMITTED"},
		After:      map[string]any{"status": "APPROVED"},
	})
	require.NoError(t, err)
	assert.Equal(t, "head", evt.PrevHash)

	want, err := ComputeHash("head", evt)
	require.NoError(t, err)
	assert.Equal(t, want, evt.Hash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRejectsIncompleteEntry(t *testing.T) {
	svc := New(nil, nil)
	_, err := svc.Record(context.Background(), Entry{ActorID: "u1", Action: "SUBMIT", EntityType: "TIMESHEET", EntityID: "t1"})
	assert.ErrorIs(t, err, ErrIncompleteEntry)
}

func TestRecordPropagatesInsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := New(mock, nil)
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT hash FROM audit_log").WillReturnError(pgx.ErrNoRows)
	insertErr := errors.New("disk full")
	mock.ExpectExec("INSERT INTO audit_log").WithArgs(anyArgs(13)...).WillReturnError(insertErr)

	_, err = svc.Record(context.Background(), Entry{ActorID: "u1", Action: "CLOSE", EntityType: "MONTH_CLOSE", EntityID: "2026-02-28", After: map[string]any{"status": "CLOSED"}})
	assert.ErrorIs(t, err, insertErr)
}

func TestBuildBaseQueryNumbersPlaceholders(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{
		EntityType: "LEAVE_REQUEST",
		ActorID:    "u1",
		From:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_log WHERE 1=1 AND entity_type = $1 AND actor_id = $2 AND created_at >= $3", query)
	assert.Len(t, args, 3)
}
