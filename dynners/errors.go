package dynners

import "fmt"

// UpdateError is a failed provider call for one target. The target's
// record is left as it was, so the next tick tries again.
type UpdateError struct {
	Target  string
	Service string
	Err     error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update of %s (%s) failed: %v", e.Target, e.Service, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}
