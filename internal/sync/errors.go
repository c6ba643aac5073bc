package sync

import "fmt"

// AuthenticationError indicates authentication against either platform failed
// in a way the cycle cannot recover from. It aborts the remaining activities
// of the current cycle but never terminates the process; the next scheduled
// cycle is still attempted.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication: %s: %v", e.Message, e.Err)
	}
	return "authentication: " + e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
