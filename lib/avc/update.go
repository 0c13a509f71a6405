// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// operationCmd identifies a single operation number within an
// operation type, as carried by a GRANT update that should also
// self-patch the fine-grained path when a cmd is supplied.
type operationCmd struct {
	Type   uint8
	Number uint8
}

// updateArgs bundles the per-event payload updateNode needs. Only the
// fields relevant to event are consulted.
type updateArgs struct {
	perms     Perm
	cmd       *operationCmd
	operation *OperationDecision // for EventAddOperation
}

// updateNode runs the clone-modify-replace protocol. It
// locates a node matching both key and seqno — matching seqno, not
// just key, so a concurrent newer insert is never clobbered by a
// stale update — clones it, applies event, and splices the clone into
// the chain in place of the original. Returns ErrNotFound if no node
// with matching key and seqno is linked.
func (c *Cache) updateNode(ssid, tsid SID, tclass Class, seqno uint32, event Event, args updateArgs) (*avcNode, error) {
	b := &c.buckets[hashKey(ssid, tsid, tclass)]

	b.mu.Lock()
	defer b.mu.Unlock()

	var original *avcNode
	var prev *avcNode
	for node := b.head.Load(); node != nil; node = node.next.Load() {
		if node.matchesKey(ssid, tsid, tclass) && node.avd.Seqno == seqno {
			original = node
			break
		}
		prev = node
	}
	if original == nil {
		return nil, ErrNotFound
	}

	candidate := original.cloneForUpdate()
	applyEvent(candidate, event, args)
	candidate.next.Store(original.next.Load())

	if prev == nil {
		b.head.Store(candidate)
	} else {
		prev.next.Store(candidate)
	}

	c.reclaim.retire(original)
	c.stats.allocations.Add(1)

	return candidate, nil
}

// applyEvent mutates candidate (a freshly cloned, not-yet-linked
// node) in place according to event. This is the only place a node's
// avd/ops fields are written after construction, and it only ever
// touches a candidate that no reader can yet observe.
func applyEvent(candidate *avcNode, event Event, args updateArgs) {
	switch event {
	case EventGrant:
		candidate.avd.Allowed |= args.perms
		if args.cmd != nil {
			candidate.ops = patchOperationAllowed(candidate.ops, args.cmd.Type, args.cmd.Number)
		}
	case EventRevoke, EventTryRevoke:
		candidate.avd.Allowed &^= args.perms
	case EventAuditAllowEnable:
		candidate.avd.AuditAllow |= args.perms
	case EventAuditAllowDisable:
		candidate.avd.AuditAllow &^= args.perms
	case EventAuditDenyEnable:
		candidate.avd.AuditDeny |= args.perms
	case EventAuditDenyDisable:
		candidate.avd.AuditDeny &^= args.perms
	case EventAddOperation:
		if args.operation != nil {
			candidate.ops = candidate.ops.withDecision(args.operation.clone())
		}
	}
}

// patchOperationAllowed marks opNumber allowed within the
// OperationDecision for opType, creating that decision (with Specified
// = specifiedAllowed) if the entry has never computed it. This is the
// self-patch a permissive GRANT performs on the fine-grained path
// alongside the coarse allowed bitmap.
func patchOperationAllowed(ops *OperationNode, opType, opNumber uint8) *OperationNode {
	decision, found := ops.find(opType)
	if !found {
		decision = OperationDecision{Type: opType, Specified: specifiedAllowed}
	}
	decision.Specified |= specifiedAllowed
	decision.Allowed.set(int(opNumber))
	return ops.withDecision(decision)
}
