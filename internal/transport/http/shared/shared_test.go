package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreops/internal/domain/apperr"
	"coreops/internal/platform/metrics"
)

func TestParseDateKeepsCalendarDay(t *testing.T) {
	got, err := ParseDate("2026-03-10T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("10/03/2026")
	assert.Error(t, err)
}

func TestParsePaginationClamps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=900&offset=-4", nil)
	page := ParsePagination(req, 50, 200)
	assert.Equal(t, 200, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestParsePaginationIgnoresMalformedValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=abc&offset=7", nil)
	page := ParsePagination(req, 50, 200)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 7, page.Offset)

	rec := httptest.NewRecorder()
	SetTotalCount(rec, 42)
	assert.Equal(t, "42", rec.Header().Get(TotalCountHeader))
}

func TestValidatorSortsIssues(t *testing.T) {
	v := NewValidator()
	v.Required("task", " ", "is required")
	v.DateOrder("startDate", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "endDate", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	issues := v.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, "endDate", issues[0].Field)
	assert.Equal(t, "task", issues[2].Field)
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	var dst struct {
		Reason string `json:"reason"`
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"reason":"a"}{"reason":"b"}`))
	assert.False(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondErrorCountsRejections(t *testing.T) {
	collector := metrics.New()
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodPost, "/x", nil), collector, apperr.MonthLocked("2026-02-28", false))
	assert.Equal(t, http.StatusLocked, rec.Code)

	snapshot := collector.Snapshot()
	rejections, ok := snapshot["rejections"].(map[string]uint64)
	require.True(t, ok)
	assert.Equal(t, uint64(1), rejections["month_locked"])
}

func TestValidatorRangeChecks(t *testing.T) {
	v := NewValidator()
	v.OneOf("unit", "half_day", []string{"FULL_DAY", "HALF_DAY"}, "must be FULL_DAY or HALF_DAY")
	v.Year("year", 1899)
	limit := decimal.RequireFromString("999999.99")
	v.Amount("grantAmount", decimal.RequireFromString("-0.5"), 2, limit)
	v.Amount("openingBalance", decimal.Zero, 2, limit)
	v.Amount("openingBalance", decimal.RequireFromString("1.50"), 2, limit)
	v.Amount("precise", decimal.RequireFromString("0.005"), 2, limit)
	v.Amount("huge", decimal.RequireFromString("1000000"), 2, limit)

	issues := v.Issues()
	require.Len(t, issues, 4)
	assert.Equal(t, []string{"grantAmount", "huge", "precise", "year"},
		[]string{issues[0].Field, issues[1].Field, issues[2].Field, issues[3].Field})

	rec := httptest.NewRecorder()
	require.True(t, v.Reject(rec, "req-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"validation_failed"`)
}
