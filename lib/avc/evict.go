// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// evict is an approximate-LRU evictor: a non-blocking,
// bounded pass that unlinks up to reclaimBatch nodes from buckets
// selected by a rotating hint, skipping any bucket it can't
// immediately lock. It never calls into allocation or an external
// component, and it is called with no bucket lock held.
func (c *Cache) evict() {
	count := 0
	for attempt := 0; attempt < NSlots; attempt++ {
		hint := c.lruHint.Add(1) - 1
		b := &c.buckets[int(hint%NSlots)]

		if !b.mu.TryLock() {
			continue
		}

		node := b.head.Load()
		for node != nil && count < c.reclaimBatch {
			next := node.next.Load()
			c.reclaim.retire(node)
			c.activeCount.Add(-1)
			c.stats.reclaims.Add(1)
			count++
			node = next
		}
		// node is either nil (whole chain consumed) or the first node
		// not yet processed; its own next pointer still correctly
		// chains the remainder, so it becomes the new head unmodified.
		// Retired nodes keep their next pointer intact (never nil it)
		// so a lock-free reader already past the old head can still
		// walk through them to whatever comes after.
		b.head.Store(node)

		b.mu.Unlock()

		if count >= c.reclaimBatch {
			return
		}
	}
}
