package sync

import "time"

// FailureKind classifies why one item failed.
type FailureKind string

const (
	// FailureIO is a local or remote read/write error.
	FailureIO FailureKind = "io"
	// FailurePermission is an access-denied error on either end.
	FailurePermission FailureKind = "permission"
	// FailureVanished means the file disappeared between planning and
	// transfer.
	FailureVanished FailureKind = "vanished"
	// FailureChannel is a transport-level error mid-operation.
	FailureChannel FailureKind = "channel"
)

// ItemFailure records one failed item; the plan continued past it.
type ItemFailure struct {
	Path string      `json:"path"`
	Kind FailureKind `json:"kind"`
	Err  string      `json:"error"`
}

// Outcome summarizes one executed operation. Constructed once by the
// executor; never mutated afterwards. Succeeded is true only with zero
// failures and no cancellation — partial success is distinct from both
// total failure and total success.
type Outcome struct {
	Succeeded        bool          `json:"succeeded"`
	Cancelled        bool          `json:"cancelled,omitempty"`
	ItemsTransferred int           `json:"items_transferred"`
	ItemsFailed      int           `json:"items_failed"`
	BytesTransferred int64         `json:"bytes_transferred"`
	Failures         []ItemFailure `json:"failures,omitempty"`
	Advisories       []string      `json:"advisories,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

// Attempted reports whether any item was actually tried.
func (o *Outcome) Attempted() bool {
	return o.ItemsTransferred > 0 || o.ItemsFailed > 0
}
