package sync

// ProgressFunc receives one notification per processed item. done is
// monotonic and reaches total unless the operation is cancelled.
// Callbacks may arrive from a worker goroutine; treat them as
// notifications, not synchronization points.
type ProgressFunc func(done, total int, message string)

// emit is nil-safe so the core never branches on a missing sink.
func (f ProgressFunc) emit(done, total int, message string) {
	if f != nil {
		f(done, total, message)
	}
}
