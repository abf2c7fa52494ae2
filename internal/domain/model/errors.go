package model

import "errors"

// Sentinel error kinds for domain validation. Callers match with errors.Is.
var (
	// ErrInvalidInput marks input-contract violations that reject an invocation
	// before any computation starts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks lookups of ids the store does not know.
	ErrNotFound = errors.New("not found")

	// ErrMalformedResult marks result rows that cannot be scored.
	ErrMalformedResult = errors.New("malformed result")

	// ErrNonContiguousScale marks point tables whose positions do not run 1..N.
	ErrNonContiguousScale = errors.New("point scale positions are not contiguous from 1")
)
