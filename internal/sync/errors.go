package sync

import "errors"

// Error categories, checkable with errors.Is. Operations that abort
// before any transfer return one of these; per-item failures accumulate
// in the Outcome instead.
var (
	// ErrConfiguration covers invalid or missing profile data.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection covers failure to establish the transfer channel.
	// Raised before any state mutation.
	ErrConnection = errors.New("connection error")

	// ErrPlanning covers revision-diff and remote-listing failures, and
	// any unexpected fault recovered during planning.
	ErrPlanning = errors.New("planning error")

	// ErrSiteBusy reports another in-flight operation on the same site.
	ErrSiteBusy = errors.New("another operation is already running for this site")
)
