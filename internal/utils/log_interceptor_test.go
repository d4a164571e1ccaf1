package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogInterceptor_StampsLines(t *testing.T) {
	var out bytes.Buffer
	w := NewLogInterceptor(&out)

	_, err := w.Write([]byte("first\nsecond\n"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "line=1 time="))
	assert.True(t, strings.HasSuffix(lines[0], " first"))
	assert.True(t, strings.HasPrefix(lines[1], "line=2 time="))
}

func TestLogInterceptor_BuffersPartialLines(t *testing.T) {
	var out bytes.Buffer
	w := NewLogInterceptor(&out)

	_, err := w.Write([]byte("par"))
	require.NoError(t, err)
	assert.Empty(t, out.String())

	_, err = w.Write([]byte("tial\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), " partial")
}

func TestLogInterceptor_CloseFlushes(t *testing.T) {
	var out bytes.Buffer
	w := NewLogInterceptor(&out)

	_, err := w.Write([]byte("no newline"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Contains(t, out.String(), "no newline")
}
