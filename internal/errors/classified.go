package errors

import "fmt"

// ClassifiedError is a structured error carrying category, severity, and context.
// Per-game pipeline stages produce these so the orchestrator can report outcomes
// without string matching.
type ClassifiedError struct {
	category Category
	severity Severity
	message  string
	cause    error
	context  Context
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error { return e.cause }

// Category returns the error category.
func (e *ClassifiedError) Category() Category { return e.category }

// Severity returns the error severity.
func (e *ClassifiedError) Severity() Severity { return e.severity }

// Message returns the error message without category decoration.
func (e *ClassifiedError) Message() string { return e.message }

// Context returns the structured error context.
func (e *ClassifiedError) Context() Context { return e.context }

// Is implements error comparison for errors.Is.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// IsFatal reports whether the error should abort the whole run.
func (e *ClassifiedError) IsFatal() bool { return e.severity == SeverityFatal }

// AsClassified attempts to convert an error to a ClassifiedError.
func AsClassified(err error) (*ClassifiedError, bool) {
	if c, ok := err.(*ClassifiedError); ok {
		return c, true
	}
	return nil, false
}

// GetCategory extracts the category from an error, or returns CategoryInternal.
func GetCategory(err error) Category {
	if c, ok := AsClassified(err); ok {
		return c.Category()
	}
	return CategoryInternal
}

// HasCategory checks whether an error is classified with the given category.
func HasCategory(err error, category Category) bool {
	if c, ok := AsClassified(err); ok {
		return c.category == category
	}
	return false
}
