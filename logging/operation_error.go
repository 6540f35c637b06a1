package logging

import "fmt"

// OperationError annotates an error with the pipeline stage and the subject
// (usually an image name or dataset) it happened on.
type OperationError struct {
	Operation string
	Subject   string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s (%s): %v", e.Operation, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with structured context about where it occurred.
func NewOperationError(operation, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, Subject: subject, Err: err}
}
