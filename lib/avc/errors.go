// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "errors"

// Sentinel errors returned by cache operations. Callers should use
// errors.Is against these rather than comparing strings.
var (
	// ErrPermissionDenied is returned by the decision protocol when a
	// requested permission is not allowed and either CallStrict was set,
	// or enforcing mode is active and the entry is not permissive.
	ErrPermissionDenied = errors.New("avc: permission denied")

	// ErrNotFound is returned by updateNode when the targeted entry no
	// longer exists (evicted, flushed, or already replaced by a newer
	// seqno). Benign; callers discard it.
	ErrNotFound = errors.New("avc: entry not found")

	// errStaleSeqno is returned internally by insert when the
	// candidate's seqno trails latestSeqno. It never reaches a public
	// API: decide discards it and proceeds with the freshly computed
	// decision regardless.
	errStaleSeqno = errors.New("avc: stale seqno")

	// ErrTryAgainNonBlocking is returned when CallMayNotBlock is set
	// and the audit sink's non-blocking path is saturated.
	ErrTryAgainNonBlocking = errors.New("avc: try again, non-blocking audit queue full")

	// ErrDisabled is returned by operations attempted after Disable.
	// This cache chooses to reject outright rather than silently
	// compute against a torn-down state.
	ErrDisabled = errors.New("avc: cache disabled")
)

// deniedError wraps ErrPermissionDenied with the computed decision so
// callers that want the AvDecision alongside the error can unwrap it
// with errors.As.
type deniedError struct {
	Decision AvDecision
}

func (e *deniedError) Error() string { return ErrPermissionDenied.Error() }

func (e *deniedError) Unwrap() error { return ErrPermissionDenied }
