// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// CallFlags modifies how the decision protocol handles a denial or an
// audit attempt for a single call.
type CallFlags uint32

const (
	// CallStrict disables the permissive self-patch path entirely: a
	// denial is always returned as ErrPermissionDenied, even when the
	// entry carries FlagPermissive or Enforcing reports false.
	CallStrict CallFlags = 1 << 0

	// CallOperationCmd marks a GRANT produced by this call as also
	// patching the fine-grained operation bit named by the call's cmd,
	// not just the coarse allowed bitmap.
	CallOperationCmd CallFlags = 1 << 1

	// CallMayNotBlock instructs the audit step to use the sink's
	// non-blocking path. A saturated sink returns
	// ErrTryAgainNonBlocking instead of blocking the caller.
	CallMayNotBlock CallFlags = 1 << 2
)

// AuditData carries caller-supplied context threaded through to the
// AuditRecord the decision protocol hands to the AuditSink. It is
// opaque to the cache itself.
type AuditData struct {
	// Extra holds additional rendering context (e.g. a request ID or
	// calling subsystem name) that a caller wants surfaced in the
	// audit trail. Carried verbatim onto AuditRecord.Extra;
	// lib/avcaudit's render appends each pair in sorted key order.
	Extra map[string]string
}
