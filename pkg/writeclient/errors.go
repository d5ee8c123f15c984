package writeclient

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrClientClosed = errors.New("client closed")
	ErrNotRunning   = errors.New("client not running")
)

// ClientError describes a failed batch operation.
type ClientError struct {
	Op       string // "validate", "encode", "send" or "flush"
	BatchID  string // empty until the batch is framed
	Records  int    // records in the failed batch
	Attempts int    // send attempts made
	Cause    error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	switch {
	case e.BatchID != "" && e.Attempts > 0:
		return fmt.Sprintf("%s batch %s (%d records, %d attempts): %v", e.Op, e.BatchID, e.Records, e.Attempts, e.Cause)
	case e.BatchID != "":
		return fmt.Sprintf("%s batch %s (%d records): %v", e.Op, e.BatchID, e.Records, e.Cause)
	default:
		return fmt.Sprintf("%s batch (%d records): %v", e.Op, e.Records, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *ClientError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}
