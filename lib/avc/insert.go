// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// insert refuses stale-seqno candidates, may trigger one evictor
// pass, and either replaces an existing node with
// the same key or prepends a new one. Returns the linked node, or nil
// and errStaleSeqno if the insert was refused — callers proceed with
// the decision they already computed regardless.
func (c *Cache) insert(ssid, tsid SID, tclass Class, avd AvDecision, ops *OperationNode) (*avcNode, error) {
	c.seqnoMu.Lock()
	latest := c.latestSeqno
	c.seqnoMu.Unlock()
	if avd.Seqno < latest {
		return nil, errStaleSeqno
	}

	if c.activeCount.Load() >= c.cacheThreshold {
		c.evict()
	}

	node := &avcNode{
		ssid:   ssid,
		tsid:   tsid,
		tclass: tclass,
		avd:    avd,
		ops:    ops.clone(),
	}
	c.stats.allocations.Add(1)

	b := &c.buckets[hashKey(ssid, tsid, tclass)]
	b.mu.Lock()

	var replaced *avcNode
	head := b.head.Load()
	if head == nil {
		b.head.Store(node)
	} else if head.matchesKey(ssid, tsid, tclass) {
		replaced = head
		node.next.Store(replaced.next.Load())
		b.head.Store(node)
	} else {
		prev := head
		for next := prev.next.Load(); next != nil; next = prev.next.Load() {
			if next.matchesKey(ssid, tsid, tclass) {
				replaced = next
				node.next.Store(replaced.next.Load())
				prev.next.Store(node)
				break
			}
			prev = next
		}
		if replaced == nil {
			node.next.Store(head)
			b.head.Store(node)
		}
	}
	b.mu.Unlock()

	if replaced != nil {
		c.reclaim.retire(replaced)
	} else {
		c.activeCount.Add(1)
	}

	return node, nil
}
