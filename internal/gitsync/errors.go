package gitsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UnreachableError indicates the remote source could not be reached
// (network, auth, or missing repository). Per-game, recoverable next run.
type UnreachableError struct {
	Op  string
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s unreachable %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnreachableError) Unwrap() error { return e.Err }

// CorruptError indicates the local working copy is in an unrecoverable state
// after the discard-and-reclone recovery attempt also failed.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("working copy corrupt at %s: %v", e.Path, e.Err)
}
func (e *CorruptError) Unwrap() error { return e.Err }

// classifyRemoteError maps go-git transport failures onto UnreachableError.
// Anything that is not clearly a remote-side problem is returned unchanged so
// callers can treat it as local corruption.
func classifyRemoteError(op, url string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UnreachableError{Op: op, URL: url, Err: err}
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") ||
		strings.Contains(l, "could not read username") || strings.Contains(l, "invalid credentials"),
		strings.Contains(l, "repository not found") || strings.Contains(l, "does not exist"),
		strings.Contains(l, "connection refused") || strings.Contains(l, "connection reset") ||
			strings.Contains(l, "no such host") || strings.Contains(l, "no route to host") ||
			strings.Contains(l, "i/o timeout") || strings.Contains(l, "remote hung up") ||
			strings.Contains(l, "unsupported protocol") || strings.Contains(l, "unable to connect"):
		return &UnreachableError{Op: op, URL: url, Err: err}
	}
	return err
}
