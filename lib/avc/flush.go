// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// Flush unlinks every bucket's chain under its writer lock and hands
// the nodes to the reclaimer. latestSeqno is untouched; SSReset
// updates that separately.
//
// Flush is idempotent: flushing an already-empty cache is a no-op.
func (c *Cache) Flush() {
	for i := range c.buckets {
		b := &c.buckets[i]

		b.mu.Lock()
		node := b.head.Load()
		b.head.Store(nil)
		b.mu.Unlock()

		for node != nil {
			// Leave node.next intact: a lock-free reader already past
			// the old head may still be walking this chain and needs
			// it to reach whatever followed.
			next := node.next.Load()
			c.reclaim.retire(node)
			c.activeCount.Add(-1)
			node = next
		}
	}
}
