package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowBoundariesAreInclusive(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	duration := 48 * time.Hour
	end := start.Add(duration)

	w, err := NewWindow(start, end)
	require.NoError(t, err)

	assert.False(t, w.Contains(start.Add(-time.Second)), "just before start")
	assert.True(t, w.Contains(start), "exactly start")
	assert.True(t, w.Contains(start.Add(duration/2)), "inside")
	assert.True(t, w.Contains(end), "exactly end")
	assert.False(t, w.Contains(end.Add(time.Second)), "just after end")
}

func TestWindowSameInstantIsValid(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w, err := NewWindow(at, at)
	require.NoError(t, err)
	assert.True(t, w.Contains(at))
	assert.False(t, w.Contains(at.Add(time.Nanosecond)))
}

func TestWindowRejectsInvertedRange(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	_, err := NewWindow(start, start.Add(-time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWindowRequiresBothEnds(t *testing.T) {
	at := time.Now()

	_, err := NewWindow(time.Time{}, at)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewWindow(at, time.Time{})
	assert.ErrorIs(t, err, ErrConfiguration)
}
