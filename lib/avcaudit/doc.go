// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package avcaudit implements [avc.AuditSink]: it renders an
// [avc.AuditRecord] into the classic "avc: denied/granted { perms }
// scontext=... tcontext=... tclass=... permissive=0|1" line, keeps a
// bounded in-memory ring of the most recent rendered lines for a
// debug endpoint, and optionally persists every record to a rotating,
// compressed, and — when a recipient key is configured — sealed
// segment file on disk.
//
// [Sink.Emit] writes synchronously: before it returns, the record is
// in the ring and, if persistence is configured, appended to the
// current segment buffer. That buffer reaches disk when it passes the
// segment size cap or on [Sink.Flush] or [Sink.Close]. [Sink.EmitNonBlocking] instead enqueues onto a bounded
// channel drained by a background goroutine, returning
// [avc.ErrTryAgainNonBlocking] immediately if that queue is full
// rather than blocking the caller.
package avcaudit
