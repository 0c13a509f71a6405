// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "sync/atomic"

// avcNode is one cache entry: a (ssid, tsid, tclass) key, its coarse
// decision, and an optional operation node. A node is immutable once
// linked into a bucket chain — every "update" allocates a new node and
// replaces this one; next is the only field ever mutated after
// linking, and only under the owning bucket's lock. next is an
// atomic.Pointer, not a plain pointer, so lookup's lock-free readers
// have a happens-before edge with the writer's Store and never observe
// a partially published node.
type avcNode struct {
	ssid   SID
	tsid   SID
	tclass Class

	avd AvDecision
	ops *OperationNode

	next atomic.Pointer[avcNode]
}

func (n *avcNode) matchesKey(ssid, tsid SID, tclass Class) bool {
	return n.ssid == ssid && n.tsid == tsid && n.tclass == tclass
}

// cloneForUpdate returns a new node with the same key and a deep copy
// of avd and ops, ready for an updateNode candidate to mutate before
// it is spliced into the chain. n itself is never modified.
func (n *avcNode) cloneForUpdate() *avcNode {
	return &avcNode{
		ssid:   n.ssid,
		tsid:   n.tsid,
		tclass: n.tclass,
		avd:    n.avd,
		ops:    n.ops.clone(),
	}
}
