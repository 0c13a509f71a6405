// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "testing"

func TestLookupMissReturnsFalse(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)

	if _, _, ok := c.Lookup(1, 2, 3); ok {
		t.Fatalf("Lookup on an empty cache returned ok=true")
	}
}

// TestInsertThenLookupRoundTripsBitExact asserts the round-trip property:
// inserting D for key K, then looking K up, yields an AvDecision equal
// to D, including seqno.
func TestInsertThenLookupRoundTripsBitExact(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)

	want := AvDecision{Allowed: 0b10110, AuditAllow: 0b1, AuditDeny: 0b10, Flags: FlagPermissive, Seqno: 42}
	c.insert(1, 2, 3, want, nil)

	got, _, ok := c.Lookup(1, 2, 3)
	if !ok {
		t.Fatalf("Lookup after insert returned ok=false")
	}
	if got != want {
		t.Fatalf("Lookup() = %+v, want %+v", got, want)
	}
}

func TestInsertReplacesSameKeyInPlace(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)

	c.insert(1, 2, 3, AvDecision{Allowed: 1, Seqno: 1}, nil)
	c.insert(4, 5, 6, AvDecision{Allowed: 1, Seqno: 1}, nil) // a different key, same or different bucket.
	c.insert(1, 2, 3, AvDecision{Allowed: 2, Seqno: 2}, nil)

	got, _, ok := c.Lookup(1, 2, 3)
	if !ok || got.Allowed != 2 {
		t.Fatalf("Lookup(1,2,3) = %+v, ok=%v; want Allowed=2", got, ok)
	}
	if got := c.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount() after replacing one of two keys = %d, want 2", got)
	}
}
