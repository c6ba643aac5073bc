package garmin

import "fmt"

// AuthError indicates Garmin Connect authentication failed: missing session,
// rejected credentials, or an MFA challenge that cannot be completed
// unattended.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("garmin auth: %s: %v", e.Message, e.Err)
	}
	return "garmin auth: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ExtractionError indicates the FIT payload could not be pulled out of a
// downloaded activity archive.
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit extraction: %s: %v", e.Message, e.Err)
	}
	return "fit extraction: " + e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
