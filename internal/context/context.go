// Package context is a set of shorter names for the very stuttery context
// library, used throughout novarelay so every component threads the same
// cancellation and deadline plumbing without repeating "context.Context"
// at every call site.
package context

import "context"

type (
	// T - context.Context
	T = context.Context
	// F - context.CancelFunc
	F = context.CancelFunc
	// C - context.CancelCauseFunc
	C = context.CancelCauseFunc
)

var (
	// Bg - context.Background
	Bg = context.Background
	// Cancel - context.WithCancel
	Cancel = context.WithCancel
	// Timeout - context.WithTimeout
	Timeout = context.WithTimeout
	// TimeoutCause - context.WithTimeoutCause
	TimeoutCause = context.WithTimeoutCause
	// Cause - context.WithCancelCause
	Cause = context.WithCancelCause
	// GetCause - context.Cause
	GetCause = context.Cause
	// Canceled - context.Canceled
	Canceled = context.Canceled
)
