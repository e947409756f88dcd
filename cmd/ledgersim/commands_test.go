package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReportNamesFileByRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	report := &simulation.Report{
		RunID:      12,
		Seed:       42,
		StartedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2025, 1, 2, 3, 9, 5, 0, time.UTC),
		Status:     simulation.StatusInterrupted,
		Err:        errors.New("interrupted"),
	}

	path, err := writeReport(report, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-12.csv"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "status,interrupted\n")
	assert.Contains(t, string(body), "error,interrupted\n")
}

func TestWriteReportWithoutRunID(t *testing.T) {
	report := &simulation.Report{StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Status: simulation.StatusCompleted}

	path, err := writeReport(report, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "run-20250102-030405.csv", filepath.Base(path))
}
