// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "fmt"

// Stats is a snapshot of the cache's hash-table shape and counters:
// lookups, misses, allocations, and reclaims, plus the number of
// retired nodes still awaiting reclamation and an occupancy summary in
// the same spirit as the original's hash-stats dump.
type Stats struct {
	Entries        int64
	BucketsUsed    int
	BucketsTotal   int
	LongestChain   int
	Lookups        uint64
	Misses         uint64
	Allocations    uint64
	Reclaims       uint64
	PendingReclaim int
}

// Stats walks every bucket under a reader section and returns a
// point-in-time snapshot. It never takes a writer lock, so a
// concurrent insert or evict can shift counts mid-walk; this mirrors
// the approximate nature the original hash-stats dump already
// accepts, since eviction itself is deliberately approximate.
func (c *Cache) Stats() Stats {
	section := c.reclaim.EnterReaderSection()
	defer section.Exit()

	s := Stats{
		Entries:        c.activeCount.Load(),
		BucketsTotal:   NSlots,
		Lookups:        c.stats.lookups.Load(),
		Misses:         c.stats.misses.Load(),
		Allocations:    c.stats.allocations.Load(),
		Reclaims:       c.stats.reclaims.Load(),
		PendingReclaim: c.reclaim.pendingCount(),
	}

	for i := range c.buckets {
		chainLen := 0
		for node := c.buckets[i].head.Load(); node != nil; node = node.next.Load() {
			chainLen++
		}
		if chainLen > 0 {
			s.BucketsUsed++
		}
		if chainLen > s.LongestChain {
			s.LongestChain = chainLen
		}
	}

	return s
}

// BucketOccupancy returns the current chain length of every bucket,
// in bucket order. Used by the debug server's structural snapshot and
// by tooling that renders per-bucket occupancy (e.g. a heatmap);
// lib/avc itself has no use for the per-bucket breakdown beyond what
// Stats already aggregates.
func (c *Cache) BucketOccupancy() []int {
	section := c.reclaim.EnterReaderSection()
	defer section.Exit()

	lens := make([]int, NSlots)
	for i := range c.buckets {
		n := 0
		for node := c.buckets[i].head.Load(); node != nil; node = node.next.Load() {
			n++
		}
		lens[i] = n
	}
	return lens
}

// HashStatsText renders Stats in the same shape as the original's
// /selinux/avc/hash_stats text file.
func (c *Cache) HashStatsText() string {
	s := c.Stats()
	return fmt.Sprintf(
		"entries: %d\nbuckets used: %d/%d\nlongest chain: %d\n",
		s.Entries, s.BucketsUsed, s.BucketsTotal, s.LongestChain,
	)
}
