package alert

import "fmt"

// The error taxonomy shared by the remote client and the sync engine.
// Every remote-call failure is mapped to exactly one of these types so the
// presentation layer can match with errors.As and pick user-facing copy.

// NetworkError wraps transport-level failures, including request timeouts
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError wraps responses whose body could not be parsed into the
// expected shape, including unknown status values
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError carries the service's structured rejection message, or the
// client-side validation failure when the payload never left the device.
// Detail is surfaced to the user verbatim.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Detail)
}

// NotFoundError indicates the service no longer knows the given alert id
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("alert %d not found", e.ID)
}

// InvalidTransitionError is the client-side guard on terminal alerts: no
// status change is attempted once an alert is Resolvido
type InvalidTransitionError struct {
	ID   int64
	From Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("alert %d has terminal status %q, no further transitions accepted", e.ID, e.From)
}
