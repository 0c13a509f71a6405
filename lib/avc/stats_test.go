// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "testing"

func TestBucketOccupancySumsToActiveCount(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)

	for i := SID(0); i < 50; i++ {
		c.insert(i, i+1, Class(i%7), AvDecision{Allowed: 1, Seqno: 1}, nil)
	}

	occupancy := c.BucketOccupancy()
	if len(occupancy) != NSlots {
		t.Fatalf("BucketOccupancy() returned %d entries, want %d", len(occupancy), NSlots)
	}

	var total int
	for _, n := range occupancy {
		total += n
	}
	if int64(total) != c.ActiveCount() {
		t.Fatalf("sum of bucket occupancy %d != ActiveCount() %d", total, c.ActiveCount())
	}
}

func TestHashStatsTextReportsEntries(t *testing.T) {
	ss := newFakeServer(true)
	c := newTestCache(t, ss)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 1, Seqno: 1}, nil)

	if _, err := c.HasPermNoAudit(1, 2, 3, 1, 0); err != nil {
		t.Fatalf("HasPermNoAudit: %v", err)
	}

	text := c.HashStatsText()
	if text == "" {
		t.Fatalf("HashStatsText() returned empty string")
	}
	if c.Stats().Entries != 1 {
		t.Fatalf("Stats().Entries = %d, want 1", c.Stats().Entries)
	}
}
