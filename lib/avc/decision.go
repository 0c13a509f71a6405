// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// OperationCmd identifies a single operation number within an
// operation type, carried by a HasOperation call.
type OperationCmd struct {
	Type   uint8
	Number uint8
}

// HasPermNoAudit runs the coarse decision protocol without
// auditing: probe, compute-on-miss, decide. It returns the decision
// that was consulted (whether the call granted or denied) alongside
// the error.
func (c *Cache) HasPermNoAudit(ssid, tsid SID, tclass Class, requested Perm, flags CallFlags) (AvDecision, error) {
	avd, _, _, err := c.decide(ssid, tsid, tclass, requested, nil, flags)
	return avd, err
}

// HasPermFlags runs the coarse decision protocol and audits the
// outcome through the configured AuditSink. A denial takes
// precedence over a TRY_AGAIN_NONBLOCKING audit failure when both
// occur on the same call.
func (c *Cache) HasPermFlags(ssid, tsid SID, tclass Class, requested Perm, auditdata AuditData, flags CallFlags) error {
	avd, denied, _, err := c.decide(ssid, tsid, tclass, requested, nil, flags)
	if auditErr := c.audit1(ssid, tsid, tclass, requested, denied, avd, nil, OperationCmd{}, flags, auditdata); err == nil {
		err = auditErr
	}
	return err
}

// HasOperation runs the fine-grained decision protocol: the
// coarse probe, then the per-operation sub-protocol, then the same
// deny/audit tail as HasPermFlags. The operation decision consulted
// (if any) further narrows what gets audited, per
// avc_operation_audit_required: DONTAUDIT can silence an otherwise
// audit-worthy denial, and AUDITALLOW must be explicitly set on the
// operation decision for a grant to be audited at all.
func (c *Cache) HasOperation(ssid, tsid SID, tclass Class, requested Perm, cmd OperationCmd, auditdata AuditData, flags CallFlags) error {
	avd, denied, od, err := c.decide(ssid, tsid, tclass, requested, &cmd, flags)
	if auditErr := c.audit1(ssid, tsid, tclass, requested, denied, avd, od, cmd, flags, auditdata); err == nil {
		err = auditErr
	}
	return err
}

// decide runs the shared skeleton: probe, compute on
// miss, run the operation sub-protocol when cmd is non-nil, then
// resolve any denial. The returned Perm is the subset of requested
// that was denied (zero when fully granted); the returned
// *OperationDecision is whichever one the operation sub-protocol
// consulted, nil for coarse-only calls.
func (c *Cache) decide(ssid, tsid SID, tclass Class, requested Perm, cmd *OperationCmd, flags CallFlags) (AvDecision, Perm, *OperationDecision, error) {
	if c.disabled.Load() {
		return AvDecision{}, 0, nil, ErrDisabled
	}

	section := c.reclaim.EnterReaderSection()
	node := c.lookup(ssid, tsid, tclass)

	var avd AvDecision
	var ops *OperationNode

	if node != nil {
		avd = node.avd
		ops = node.ops
		section.Exit()
	} else {
		section.Exit()

		computedAVD, computedOps, err := c.ss.ComputeAV(ssid, tsid, tclass)
		if err != nil {
			return AvDecision{}, 0, nil, err
		}
		avd, ops = computedAVD, computedOps

		section = c.reclaim.EnterReaderSection()
		c.insert(ssid, tsid, tclass, avd, ops)
		section.Exit()
	}

	var od *OperationDecision
	if cmd != nil {
		avd, od = c.applyOperation(ssid, tsid, tclass, avd, ops, *cmd, requested)
	}

	denied := requested &^ avd.Allowed
	if denied == 0 {
		return avd, 0, od, nil
	}

	err := c.deniedPolicy(ssid, tsid, tclass, avd, denied, cmd, flags)
	return avd, denied, od, err
}

// applyOperation runs the per-operation sub-protocol. ops is whichever OperationNode the
// caller already has in hand — the cached entry's, or the scratch
// value ComputeAV just returned on a miss — never mutated in place.
// It returns the possibly-narrowed decision and the OperationDecision
// it consulted, for audit1's further filtering.
//
// A nil ops means this entry's class carries no operation table at
// all; the coarse decision stands unchanged. That is the only "skip"
// case: unlike the entry's decision list, typeMask is populated by
// ComputeAV up front for every type the security server can answer,
// so an empty decision list does not by itself mean "nothing to
// check" the way it would if typeMask tracked only attached
// decisions.
func (c *Cache) applyOperation(ssid, tsid SID, tclass Class, avd AvDecision, ops *OperationNode, cmd OperationCmd, requested Perm) (AvDecision, *OperationDecision) {
	if ops == nil {
		return avd, nil
	}

	decision, found := ops.find(cmd.Type)
	if !found {
		if !ops.typeMask.has(int(cmd.Type)) {
			// Never declared computable for this class: deny without
			// ever calling ComputeOperation for this type.
			avd.Allowed &^= requested
			return avd, nil
		}

		computed, err := c.ss.ComputeOperation(ssid, tsid, tclass, cmd.Type)
		if err != nil {
			// Cache-management failure never blocks a decision, but
			// with no answer from the security server the safe choice
			// is to deny rather than grant.
			avd.Allowed &^= requested
			return avd, nil
		}

		c.updateNode(ssid, tsid, tclass, avd.Seqno, EventAddOperation, updateArgs{operation: &computed})
		decision = computed
	}

	w, bit := decision.Allowed.word(int(cmd.Number))
	allowed := w&(1<<bit) != 0
	if decision.Specified.has(specifiedAllowed) && !allowed {
		avd.Allowed &^= requested
	}
	return avd, &decision
}

// filterOperationAudit narrows coarseAudited per avc_operation_audit_required:
// on a denial, an operation decision with DONTAUDIT set for cmd
// silences the requested bits entirely; on a grant, the requested
// bits are only audited when the operation decision has AUDITALLOW
// set for cmd, regardless of what the coarse AuditAllow bitmap said.
func filterOperationAudit(od *OperationDecision, cmd OperationCmd, requested, denied, coarseAudited Perm) Perm {
	if denied != 0 {
		if od.Specified.has(specifiedDontAudit) && od.DontAudit.has(int(cmd.Number)) {
			coarseAudited &^= requested
		}
		return coarseAudited
	}
	if coarseAudited == 0 {
		return 0
	}
	if !(od.Specified.has(specifiedAuditAllow) && od.AuditAllow.has(int(cmd.Number))) {
		coarseAudited &^= requested
	}
	return coarseAudited
}

// deniedPolicy implements avc_denied: a STRICT call always fails
// immediately. Otherwise, if enforcement isn't active against this
// decision (global enforcing is off, or the entry itself carries
// FlagPermissive), the denial is logged but not returned — and the
// cache entry is self-patched via a GRANT update so a subsequent
// identical call hits the fast path instead of repeating this
// resolution.
func (c *Cache) deniedPolicy(ssid, tsid SID, tclass Class, avd AvDecision, denied Perm, cmd *OperationCmd, flags CallFlags) error {
	if flags&CallStrict != 0 {
		return &deniedError{Decision: avd}
	}

	permissive := avd.Flags&FlagPermissive != 0
	if c.ss.Enforcing() && !permissive {
		return &deniedError{Decision: avd}
	}

	args := updateArgs{perms: denied}
	if cmd != nil && flags&CallOperationCmd != 0 {
		args.cmd = &operationCmd{Type: cmd.Type, Number: cmd.Number}
	}
	c.updateNode(ssid, tsid, tclass, avd.Seqno, EventGrant, args)

	return nil
}

// audit1 renders and emits an AuditRecord when the decision's audit
// bitmaps say this outcome is audit-worthy: a granted permission bit
// set in AuditAllow, or a denied bit set in AuditDeny. When od is
// non-nil (a HasOperation call consulted an operation decision), that
// decision further narrows what gets audited, per
// avc_operation_audit_required: DONTAUDIT can silence bits that would
// otherwise be audited on a denial, and a grant is only audited for
// bits where the operation decision explicitly sets AUDITALLOW. Its
// only propagating failure mode is ErrTryAgainNonBlocking; any
// other sink error is logged and swallowed, since audit delivery is
// never allowed to turn a correct decision into a failed call.
func (c *Cache) audit1(ssid, tsid SID, tclass Class, requested, denied Perm, avd AvDecision, od *OperationDecision, cmd OperationCmd, flags CallFlags, data AuditData) error {
	if c.audit == nil {
		return nil
	}

	granted := requested &^ denied
	auditWorthy := (granted & avd.AuditAllow) | (denied & avd.AuditDeny)
	if od != nil {
		auditWorthy = filterOperationAudit(od, cmd, requested, denied, auditWorthy)
	}
	if auditWorthy == 0 {
		return nil
	}

	record := AuditRecord{
		SSID:       ssid,
		TSID:       tsid,
		Class:      tclass,
		Requested:  requested,
		Denied:     denied,
		Granted:    granted,
		Permissive: avd.Flags&FlagPermissive != 0,
		Seqno:      avd.Seqno,
		Extra:      data.Extra,
	}

	var err error
	if flags&CallMayNotBlock != 0 {
		err = c.audit.EmitNonBlocking(record)
	} else {
		err = c.audit.Emit(record)
	}
	if err == nil {
		return nil
	}
	if err == ErrTryAgainNonBlocking {
		return err
	}
	c.log.Warn("avc: audit emit failed", "error", err, "ssid", ssid, "tsid", tsid, "tclass", tclass)
	return nil
}
