// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "testing"

// TestInsertThresholdTriggersEvictor is a boundary test: inserting
// cache_threshold+1 distinct entries on a single thread must keep
// active_count <= cache_threshold+1 immediately after the last insert,
// and it must drop towards cache_threshold+1-RECLAIM_BATCH once an
// evictor pass has run.
func TestInsertThresholdTriggersEvictor(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)
	c.cacheThreshold = 16
	c.reclaimBatch = 4

	total := int(c.cacheThreshold) + 1
	for i := SID(0); i < SID(total); i++ {
		c.insert(i, i, Class(i), AvDecision{Allowed: 1, Seqno: 1}, nil)
	}

	if got := c.ActiveCount(); got > c.cacheThreshold+1 {
		t.Fatalf("ActiveCount() = %d, want <= %d immediately after the last insert", got, c.cacheThreshold+1)
	}

	before := c.ActiveCount()
	c.evict()
	after := c.ActiveCount()
	if after >= before {
		t.Fatalf("evict() did not reduce active count: before=%d after=%d", before, after)
	}
	want := before - int64(c.reclaimBatch)
	if after > want {
		t.Fatalf("ActiveCount() after one evictor pass = %d, want <= %d", after, want)
	}
}

func TestEvictNeverExceedsReclaimBatch(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)
	c.reclaimBatch = 3

	for i := SID(0); i < 100; i++ {
		c.insert(i, i, Class(i), AvDecision{Allowed: 1, Seqno: 1}, nil)
	}

	before := c.ActiveCount()
	c.evict()
	reclaimed := before - c.ActiveCount()
	if reclaimed > int64(c.reclaimBatch) {
		t.Fatalf("evict() reclaimed %d nodes, want <= reclaimBatch (%d)", reclaimed, c.reclaimBatch)
	}
}

func TestEvictLeavesRemainingChainIntact(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)
	c.reclaimBatch = 1000000 // large enough that a single pass can drain everything it touches.

	const n = 200
	for i := SID(0); i < n; i++ {
		c.insert(i, i, Class(0), AvDecision{Allowed: 1, Seqno: 1}, nil)
	}

	c.evict()

	// Every surviving node must still be reachable by lookup and must
	// not have been silently dropped without being retired (the bug
	// this test is grounded on: truncating a bucket's chain instead of
	// re-linking the unprocessed remainder).
	remaining := int64(0)
	for i := range c.buckets {
		for node := c.buckets[i].head.Load(); node != nil; node = node.next.Load() {
			remaining++
			if c.lookup(node.ssid, node.tsid, node.tclass) == nil {
				t.Fatalf("node (%d,%d,%d) is linked but lookup cannot find it", node.ssid, node.tsid, node.tclass)
			}
		}
	}
	if remaining != c.ActiveCount() {
		t.Fatalf("linked node count %d != ActiveCount() %d after evict()", remaining, c.ActiveCount())
	}
}
