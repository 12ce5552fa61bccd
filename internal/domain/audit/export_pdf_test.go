package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTrailPDF(t *testing.T) {
	events := []Event{
		{ActorID: "u1", Action: "SUBMIT", Reason: "family trip", Hash: "aa", CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{ActorID: "u2", Action: "APPROVE", Override: true, Reason: "late approval after close", Hash: "bb", CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTrailPDF(&buf, "LEAVE_REQUEST", "r1", events, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd~", truncate("abcdefgh", 5))
}
