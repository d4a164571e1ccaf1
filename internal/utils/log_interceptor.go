// Package utils provides small shared helpers for the wpsync CLI.
package utils

import (
	"bytes"
	"io"
	"strconv"
	"sync"
	"time"
)

// LogInterceptor stamps each line written through it with a sequence
// number and a timestamp before passing it to the target writer. The
// debug log file uses it so interleaved runs stay ordered even when
// clocks are coarse.
type LogInterceptor struct {
	mu      sync.Mutex
	target  io.Writer
	partial bytes.Buffer
	seq     uint64
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

// Write buffers input until complete lines are available and emits each
// one stamped. Partial lines wait for their newline.
func (l *LogInterceptor) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.partial.Write(p)
	for {
		line, err := l.partial.ReadBytes('\n')
		if err != nil {
			// Incomplete line; put it back and wait for more.
			l.partial.Write(line)
			return len(p), nil
		}
		if err := l.emit(line); err != nil {
			return len(p), err
		}
	}
}

// Close flushes any trailing unterminated line.
func (l *LogInterceptor) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.partial.Len() == 0 {
		return nil
	}
	rest := append([]byte(nil), l.partial.Bytes()...)
	rest = append(rest, '\n')
	l.partial.Reset()
	return l.emit(rest)
}

func (l *LogInterceptor) emit(line []byte) error {
	l.seq++

	var stamp bytes.Buffer
	stamp.WriteString("line=")
	stamp.WriteString(strconv.FormatUint(l.seq, 10))
	stamp.WriteString(" time=")
	stamp.WriteString(time.Now().Format(time.RFC3339))
	stamp.WriteByte(' ')
	stamp.Write(line)

	_, err := l.target.Write(stamp.Bytes())
	return err
}
