package sync

import (
	"fmt"
	"time"
)

// Window is a closed time interval: both endpoints are included.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow validates that end does not precede start.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, fmt.Errorf("%w: window start and end are required", ErrConfiguration)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: window end %s precedes start %s", ErrConfiguration,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether t falls inside the window, endpoints
// included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s .. %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
