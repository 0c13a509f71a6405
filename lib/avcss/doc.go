// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package avcss provides a concrete [avc.SecurityServer] implementation
// and the class map that backs it.
//
// A [ClassMap] loads the static table of object-class names to
// permission names from a JSONC file and is used by audit rendering
// to turn permission bitmaps back into names.
//
// [Server] is a class-map-backed, type-enforcement-style security
// server: SIDs are registered against "user:role:type" contexts,
// access and operation rules are registered by type pair and class
// name, and ComputeAV/ComputeOperation resolve a cache miss by
// looking up the matching rule. It exists to make cmd/avcd runnable
// end to end; it is not part of lib/avc's contract, and a real
// deployment would replace it with an adapter over an actual policy
// engine.
package avcss
