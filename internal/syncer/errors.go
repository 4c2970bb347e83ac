package syncer

import "fmt"

// RemoteWriteError wraps a failed best-effort remote write.
//
// It is deliberately non-fatal: the local write already committed, the record
// stays pending, and a later sweep retries it. Synchronizers log these and
// report them on completion channels; they never propagate them to the write
// path's caller.
type RemoteWriteError struct {
	Entity string
	ID     string
	Err    error
}

// Error implements the error interface.
func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote write failed for %s %s: %v", e.Entity, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}
