package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sells-group/appraisal-etl/internal/runlog"
	"github.com/stretchr/testify/assert"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(95 * time.Second)
	entries := []runlog.Entry{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Source:      "mi_tabla",
			Status:      runlog.StatusComplete,
			StartedAt:   now,
			CompletedAt: &done,
			RowsLoaded:  1520,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Source:    "mi_tabla",
			Status:    runlog.StatusRunning,
			StartedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, entries)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "1520")
	assert.Contains(t, output, "1m35s")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestFormatRunsList_TruncatesError(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	entries := []runlog.Entry{{
		ID:        "fail0000",
		Source:    "mi_tabla",
		Status:    runlog.StatusFailed,
		StartedAt: now,
		Error:     strings.Repeat("x", 60),
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, entries)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, strings.Repeat("x", 37)+"...")
	assert.NotContains(t, output, strings.Repeat("x", 38))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "", truncateID(""))
}
