package reactivesql

import "fmt"

// ErrInvalidRequest is signalled to a downstream subscriber when it calls
// Request with n <= 0 (reactive-streams rule 3.9).
var ErrInvalidRequest = &InvalidRequestError{}

// InvalidRequestError reports a protocol violation on Subscription.Request.
type InvalidRequestError struct{}

func (e *InvalidRequestError) Error() string {
	return "reactivesql: request(n) called with n <= 0"
}

// RenderError wraps a failure from the external SQL renderer (spec 7.2).
type RenderError struct {
	Query string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("reactivesql: rendering query failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// DriverError wraps a failure surfaced by the driver during statement
// creation, bind, execute, row mapping or close (spec 7.3).
type DriverError struct {
	Stage string
	Err   error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("reactivesql: driver error during %s: %v", e.Stage, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// MappingError wraps a panic or error raised while mapping a driver row
// into a record (spec 7.4). The offending row is suppressed; the error is
// forwarded to the subscription's error channel.
type MappingError struct {
	Err error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("reactivesql: mapping row to record failed: %v", e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }
