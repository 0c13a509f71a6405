// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import "testing"

// Scenario 1: empty cache, compute_av returns allowed=0b1010, seqno=7;
// has_perm_noaudit(requested=0b0010) must grant and install the entry.
func TestScenario1_MissGrants(t *testing.T) {
	ss := newFakeServer(true)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1010, Seqno: 7}, nil)
	c := newTestCache(t, ss)

	avd, err := c.HasPermNoAudit(1, 2, 3, 0b0010, 0)
	if err != nil {
		t.Fatalf("HasPermNoAudit: %v", err)
	}
	if avd.Allowed != 0b1010 {
		t.Fatalf("avd.Allowed = %b, want %b", avd.Allowed, 0b1010)
	}

	decision, _, ok := c.Lookup(1, 2, 3)
	if !ok {
		t.Fatalf("cache has no entry for (1,2,3) after a miss")
	}
	if decision.Allowed != 0b1010 {
		t.Fatalf("cached Allowed = %b, want %b", decision.Allowed, 0b1010)
	}
}

// Scenario 2: requested bit not in allowed, enforcing=true, flags=0 ->
// PERMISSION_DENIED, no grant-patching.
func TestScenario2_EnforcedDenial(t *testing.T) {
	ss := newFakeServer(true)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1010, Seqno: 7}, nil)
	c := newTestCache(t, ss)

	_, err := c.HasPermNoAudit(1, 2, 3, 0b0100, 0)
	if _, ok := err.(*deniedError); !ok {
		t.Fatalf("HasPermNoAudit error = %v, want a *deniedError", err)
	}

	decision, _, _ := c.Lookup(1, 2, 3)
	if decision.Allowed&0b0100 != 0 {
		t.Fatalf("denied call patched the cache entry: Allowed = %b", decision.Allowed)
	}
}

// Scenario 3: enforcing=false, entry carries FlagPermissive ->
// has_perm_noaudit grants and self-patches via GRANT; the next
// identical call is a cache hit with no further compute_av.
func TestScenario3_PermissiveSelfPatch(t *testing.T) {
	ss := newFakeServer(false)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1010, Flags: FlagPermissive, Seqno: 7}, nil)
	c := newTestCache(t, ss)

	_, err := c.HasPermNoAudit(1, 2, 3, 0b0100, 0)
	if err != nil {
		t.Fatalf("HasPermNoAudit under permissive mode: %v", err)
	}

	decision, _, ok := c.Lookup(1, 2, 3)
	if !ok {
		t.Fatalf("entry missing after permissive self-patch")
	}
	if decision.Allowed != 0b1110 {
		t.Fatalf("Allowed after self-patch = %b, want %b", decision.Allowed, 0b1110)
	}

	if n := ss.computeAVCount(1, 2, 3); n != 1 {
		t.Fatalf("ComputeAV called %d times before second call, want 1", n)
	}
	if _, err := c.HasPermNoAudit(1, 2, 3, 0b0100, 0); err != nil {
		t.Fatalf("second HasPermNoAudit: %v", err)
	}
	if n := ss.computeAVCount(1, 2, 3); n != 1 {
		t.Fatalf("ComputeAV called %d times total, want 1 (second call must hit)", n)
	}
}

// Scenario 4: a reset flushes the cache and bumps latest_seqno; a
// stale-seqno insert racing the reset is refused, a fresh-seqno one is
// installed.
func TestScenario4_ResetFlushesAndGatesSeqno(t *testing.T) {
	ss := newFakeServer(true)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 7}, nil)
	c := newTestCache(t, ss)

	if _, err := c.HasPermNoAudit(1, 2, 3, 0b1, 0); err != nil {
		t.Fatalf("HasPermNoAudit before reset: %v", err)
	}
	if c.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() before reset = %d, want 1", c.ActiveCount())
	}

	if err := c.SSReset(8); err != nil {
		t.Fatalf("SSReset: %v", err)
	}
	if c.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() after reset = %d, want 0 (flush)", c.ActiveCount())
	}

	// A racer computed its decision against the superseded policy
	// (seqno 7, older than the just-installed latest_seqno 8) — insert
	// must refuse it.
	if node, err := c.insert(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 7}, nil); node != nil || err != errStaleSeqno {
		t.Fatalf("insert with stale seqno 7 (latest=8) = (%v, %v), want (nil, errStaleSeqno)", node, err)
	}
	if c.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() after refused stale insert = %d, want 0", c.ActiveCount())
	}

	// A decision computed against the new policy must install normally.
	if node, err := c.insert(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 8}, nil); node == nil || err != nil {
		t.Fatalf("insert with current seqno 8 = (%v, %v), want a linked node and nil error", node, err)
	}
	if c.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() after fresh-seqno insert = %d, want 1", c.ActiveCount())
	}
}

// Scenario 5: a first-time has_operation call for a type declared
// computable but never computed must call compute_operation exactly
// once, attach the resulting OperationDecision, and deny because bit
// 42 is clear.
func TestScenario5_FirstOperationCallComputesAndDenies(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{} // no decisions attached yet; type 5 is declared computable.
	ops.typeMask.set(5)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 7}, ops)

	var computed OperationDecision
	computed.Type = 5
	computed.Specified = specifiedAllowed
	// bit 42 left clear.
	ss.setOperation(1, 2, 3, 5, computed)

	c := newTestCache(t, ss)

	err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0)
	if err == nil {
		t.Fatalf("HasOperation = nil error, want ErrPermissionDenied from the operation mask")
	}

	_, opsNode, ok := c.Lookup(1, 2, 3)
	if !ok {
		t.Fatalf("entry missing after HasOperation")
	}
	found, ok2 := opsNode.find(5)
	if !ok2 {
		t.Fatalf("OperationDecision for type 5 not attached after first call")
	}
	if found.Allowed.has(42) {
		t.Fatalf("attached decision reports bit 42 allowed, want clear")
	}
	if !opsNode.typeMask.has(5) {
		t.Fatalf("typeMask bit 5 not set after first call")
	}
	if n := ss.computeOperationCount(1, 2, 3, 5); n != 1 {
		t.Fatalf("ComputeOperation called %d times, want 1", n)
	}
}

// Scenario 6: a second identical has_operation call hits the fast
// path and never calls compute_operation again.
func TestScenario6_SecondOperationCallHitsFastPath(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{}
	ops.typeMask.set(5)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 7}, ops)

	var computed OperationDecision
	computed.Type = 5
	computed.Specified = specifiedAllowed
	ss.setOperation(1, 2, 3, 5, computed)

	c := newTestCache(t, ss)

	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0); err == nil {
		t.Fatalf("first HasOperation call: want PERMISSION_DENIED")
	}
	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0); err == nil {
		t.Fatalf("second HasOperation call: want PERMISSION_DENIED")
	}

	if n := ss.computeOperationCount(1, 2, 3, 5); n != 1 {
		t.Fatalf("ComputeOperation called %d times across two calls, want 1", n)
	}
}

// Boundary: has_operation with a type whose typeMask bit is clear must
// deny without ever calling compute_operation.
func TestBoundary_UncomputableOperationTypeNeverCallsComputeOperation(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{} // typeMask entirely clear: this class declares no operation types.
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 7}, ops)
	c := newTestCache(t, ss)

	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 9, Number: 1}, AuditData{}, 0); err == nil {
		t.Fatalf("HasOperation with an uncomputable type: want PERMISSION_DENIED")
	}
	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 9, Number: 1}, AuditData{}, 0); err == nil {
		t.Fatalf("second HasOperation call: want PERMISSION_DENIED")
	}
	if n := ss.computeOperationCount(1, 2, 3, 9); n != 0 {
		t.Fatalf("ComputeOperation called %d times for an uncomputable type, want 0", n)
	}
}

func TestHasPermFlagsAudits(t *testing.T) {
	ss := newFakeServer(true)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, AuditAllow: 0b1, Seqno: 1}, nil)
	c := newTestCache(t, ss)
	sink := &fakeAuditSink{}
	c.audit = sink

	if err := c.HasPermFlags(1, 2, 3, 0b1, AuditData{}, 0); err != nil {
		t.Fatalf("HasPermFlags: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("audit sink recorded %d records, want 1", sink.count())
	}
}

func TestHasPermFlagsSkipsAuditWhenNotAuditWorthy(t *testing.T) {
	ss := newFakeServer(true)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, Seqno: 1}, nil)
	c := newTestCache(t, ss)
	sink := &fakeAuditSink{}
	c.audit = sink

	if err := c.HasPermFlags(1, 2, 3, 0b1, AuditData{}, 0); err != nil {
		t.Fatalf("HasPermFlags: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("audit sink recorded %d records, want 0 (no auditallow bit set)", sink.count())
	}
}

func TestHasPermFlagsPropagatesNonBlockingAuditRefusal(t *testing.T) {
	ss := newFakeServer(true)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, AuditAllow: 0b1, Seqno: 1}, nil)
	c := newTestCache(t, ss)
	sink := &fakeAuditSink{refuseOnce: true}
	c.audit = sink

	if err := c.HasPermFlags(1, 2, 3, 0b1, AuditData{}, CallMayNotBlock); err != ErrTryAgainNonBlocking {
		t.Fatalf("HasPermFlags with a saturated non-blocking sink: err = %v, want ErrTryAgainNonBlocking", err)
	}
}

// A denial whose coarse AuditDeny bit is set is still silenced when
// the consulted operation decision sets DONTAUDIT for that operation
// number, per avc_operation_audit_required.
func TestHasOperationDontAuditSilencesDeniedAudit(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{}
	ops.typeMask.set(5)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, AuditDeny: 0b1, Seqno: 7}, ops)

	var computed OperationDecision
	computed.Type = 5
	computed.Specified = specifiedAllowed | specifiedDontAudit
	computed.DontAudit.set(42) // bit 42 left clear in Allowed, but DONTAUDIT set.
	ss.setOperation(1, 2, 3, 5, computed)

	c := newTestCache(t, ss)
	sink := &fakeAuditSink{}
	c.audit = sink

	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0); err == nil {
		t.Fatalf("HasOperation: want PERMISSION_DENIED")
	}
	if sink.count() != 0 {
		t.Fatalf("audit sink recorded %d records, want 0 (DONTAUDIT must silence the denial)", sink.count())
	}
}

// A denial audited through the coarse AuditDeny bitmap still reaches
// the sink when the operation decision does not set DONTAUDIT for
// that operation number.
func TestHasOperationAuditsDenialWithoutDontAudit(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{}
	ops.typeMask.set(5)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, AuditDeny: 0b1, Seqno: 7}, ops)

	var computed OperationDecision
	computed.Type = 5
	computed.Specified = specifiedAllowed
	ss.setOperation(1, 2, 3, 5, computed)

	c := newTestCache(t, ss)
	sink := &fakeAuditSink{}
	c.audit = sink

	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0); err == nil {
		t.Fatalf("HasOperation: want PERMISSION_DENIED")
	}
	if sink.count() != 1 {
		t.Fatalf("audit sink recorded %d records, want 1 (no DONTAUDIT set)", sink.count())
	}
}

// A grant whose coarse AuditAllow bit is set is still silenced unless
// the consulted operation decision explicitly sets AUDITALLOW for
// that operation number.
func TestHasOperationGrantRequiresOperationAuditAllow(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{}
	ops.typeMask.set(5)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, AuditAllow: 0b1, Seqno: 7}, ops)

	var computed OperationDecision
	computed.Type = 5
	computed.Specified = specifiedAllowed
	computed.Allowed.set(42) // grants bit 42, but AUDITALLOW is not specified.
	ss.setOperation(1, 2, 3, 5, computed)

	c := newTestCache(t, ss)
	sink := &fakeAuditSink{}
	c.audit = sink

	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0); err != nil {
		t.Fatalf("HasOperation: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("audit sink recorded %d records, want 0 (operation decision lacks AUDITALLOW)", sink.count())
	}
}

// A grant is audited when the operation decision sets AUDITALLOW for
// that operation number, even though the bit itself is only reachable
// via the coarse Allowed mask plus the operation Allowed bit.
func TestHasOperationGrantAuditedWithOperationAuditAllow(t *testing.T) {
	ss := newFakeServer(true)
	ops := &OperationNode{}
	ops.typeMask.set(5)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1, AuditAllow: 0b1, Seqno: 7}, ops)

	var computed OperationDecision
	computed.Type = 5
	computed.Specified = specifiedAllowed | specifiedAuditAllow
	computed.Allowed.set(42)
	computed.AuditAllow.set(42)
	ss.setOperation(1, 2, 3, 5, computed)

	c := newTestCache(t, ss)
	sink := &fakeAuditSink{}
	c.audit = sink

	if err := c.HasOperation(1, 2, 3, 0b1, OperationCmd{Type: 5, Number: 42}, AuditData{}, 0); err != nil {
		t.Fatalf("HasOperation: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("audit sink recorded %d records, want 1 (operation decision sets AUDITALLOW)", sink.count())
	}
}

func TestCallStrictNeverSelfPatches(t *testing.T) {
	ss := newFakeServer(false)
	ss.setAV(1, 2, 3, AvDecision{Allowed: 0b1010, Flags: FlagPermissive, Seqno: 7}, nil)
	c := newTestCache(t, ss)

	if _, err := c.HasPermNoAudit(1, 2, 3, 0b0100, CallStrict); err == nil {
		t.Fatalf("HasPermNoAudit with CallStrict under permissive mode: want ErrPermissionDenied")
	}

	decision, _, _ := c.Lookup(1, 2, 3)
	if decision.Allowed&0b0100 != 0 {
		t.Fatalf("CallStrict self-patched the cache entry: Allowed = %b", decision.Allowed)
	}
}
