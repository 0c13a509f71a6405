// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "testing"

func TestNewRequiresSecurityServer(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("New(Config{}) succeeded without a SecurityServer")
	}
}

func TestHashKeyDeterministicAndBounded(t *testing.T) {
	for _, k := range []avcKey{
		{1, 2, 3}, {0, 0, 0}, {0xffffffff, 0xffffffff, 0xffff},
	} {
		h1 := hashKey(k.ssid, k.tsid, k.tclass)
		h2 := hashKey(k.ssid, k.tsid, k.tclass)
		if h1 != h2 {
			t.Fatalf("hashKey(%+v) not deterministic: %d vs %d", k, h1, h2)
		}
		if h1 < 0 || h1 >= NSlots {
			t.Fatalf("hashKey(%+v) = %d, out of [0, %d)", k, h1, NSlots)
		}
	}
}

// TestInsertOneLinkedNodePerKey asserts that at most one linked node
// exists per key per bucket at any observable instant.
func TestInsertOneLinkedNodePerKey(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)

	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 1}, nil)
	c.insert(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 1}, nil)
	c.insert(1, 2, 3, AvDecision{Allowed: 0b11, Seqno: 2}, nil)

	b := &c.buckets[hashKey(1, 2, 3)]
	count := 0
	for node := b.head.Load(); node != nil; node = node.next.Load() {
		if node.matchesKey(1, 2, 3) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("bucket has %d linked nodes for key (1,2,3), want 1", count)
	}
}

// TestActiveCountMatchesLinkedNodes asserts activeCount always equals
// the number of linked nodes across the bucket table.
func TestActiveCountMatchesLinkedNodes(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)

	for i := SID(0); i < 20; i++ {
		c.insert(i, i+1, Class(i), AvDecision{Allowed: 1, Seqno: 1}, nil)
	}

	if got := c.ActiveCount(); got != 20 {
		t.Fatalf("ActiveCount() = %d, want 20", got)
	}

	linked := 0
	for i := range c.buckets {
		for node := c.buckets[i].head.Load(); node != nil; node = node.next.Load() {
			linked++
		}
	}
	if int64(linked) != c.ActiveCount() {
		t.Fatalf("linked node count %d != ActiveCount() %d", linked, c.ActiveCount())
	}
}

func TestDisableFlushesAndRejectsFurtherDecisions(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 1, Seqno: 1}, nil)

	if _, err := c.HasPermNoAudit(1, 2, 3, 1, 0); err != nil {
		t.Fatalf("HasPermNoAudit before Disable: %v", err)
	}

	c.Disable()

	if got := c.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount() after Disable = %d, want 0", got)
	}
	if _, err := c.HasPermNoAudit(1, 2, 3, 1, 0); err != ErrDisabled {
		t.Fatalf("HasPermNoAudit after Disable: err = %v, want ErrDisabled", err)
	}
}
