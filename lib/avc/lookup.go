// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// lookup walks the chain at h(ssid,tsid,tclass) and returns the first
// node matching all three key components, or nil. The caller must
// already hold a reader section open: the returned node remains
// readable until that section ends, but its fields may be freed
// afterward.
//
// lookup never takes the bucket's writer lock. A concurrent unlink
// simply drops the node from the chain the next traversal observes;
// this traversal either sees it or doesn't, never a torn read, because
// head and next are atomic.Pointer: every Load has a happens-before
// edge with the Store that published it, so a traversal never
// observes a partially constructed node.
func (c *Cache) lookup(ssid, tsid SID, tclass Class) *avcNode {
	c.stats.lookups.Add(1)

	b := &c.buckets[hashKey(ssid, tsid, tclass)]
	for node := b.head.Load(); node != nil; node = node.next.Load() {
		if node.matchesKey(ssid, tsid, tclass) {
			return node
		}
	}

	c.stats.misses.Add(1)
	return nil
}

// Lookup is the public form of lookup: it opens its own reader
// section and returns a copy of the cached AvDecision plus the
// OperationNode, so callers outside the decision protocol can inspect
// cache state without holding a section open themselves (the returned
// OperationNode is never mutated in place, so sharing it is safe).
// ok is false on a cache miss.
func (c *Cache) Lookup(ssid, tsid SID, tclass Class) (decision AvDecision, ops *OperationNode, ok bool) {
	section := c.reclaim.EnterReaderSection()
	defer section.Exit()

	node := c.lookup(ssid, tsid, tclass)
	if node == nil {
		return AvDecision{}, nil, false
	}
	return node.avd, node.ops, true
}
