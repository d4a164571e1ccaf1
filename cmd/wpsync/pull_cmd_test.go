package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpsync/wpsync/internal/sync"
)

func TestParseWindow_RFC3339(t *testing.T) {
	window, err := parseWindow("2026-03-01T10:00:00Z", "2026-03-02T10:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), window.End)
}

func TestParseWindow_BareDateCoversWholeEndDay(t *testing.T) {
	window, err := parseWindow("2026-03-01", "2026-03-01")
	require.NoError(t, err)

	// --to names a date, so the window runs to that day's last instant.
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), window.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local).Add(-time.Nanosecond), window.End)
}

func TestParseWindow_RejectsGarbage(t *testing.T) {
	_, err := parseWindow("yesterday", "2026-03-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrConfiguration)
}

func TestParseWindow_RejectsInvertedWindow(t *testing.T) {
	_, err := parseWindow("2026-03-02", "2026-03-01")
	require.Error(t, err)
}
