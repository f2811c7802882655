package errors

import "maps"

// Category represents the broad classification of an error for routing and reporting.
type Category string

const (
	// CategoryManifest covers game manifest parsing and validation failures.
	CategoryManifest Category = "manifest"
	CategoryConfig   Category = "config"

	// CategorySync covers repository synchronization failures.
	CategorySync Category = "sync"

	// CategoryBuild covers external build command failures.
	CategoryBuild Category = "build"

	// CategoryPublish covers artifact publication failures.
	CategoryPublish Category = "publish"

	// CategoryState covers version record store failures.
	CategoryState Category = "state"

	CategoryFileSystem Category = "filesystem"
	CategoryInternal   Category = "internal"
)

// Severity indicates the impact level of an error.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Aborts the whole run
	SeverityError   Severity = "error"   // Fails the current game only
	SeverityWarning Severity = "warning" // Continues with degraded behavior
)

// Context provides structured key/value context for errors.
type Context map[string]any

// Set adds or updates a context value.
func (c Context) Set(key string, value any) Context {
	if c == nil {
		c = make(Context)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[key]
	return v, ok
}

// Merge combines another context into this one, returning the result.
func (c Context) Merge(other Context) Context {
	if c == nil {
		c = make(Context)
	}
	maps.Copy(c, other)
	return c
}
