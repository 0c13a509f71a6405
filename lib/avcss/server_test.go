// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcss

import (
	"testing"

	"github.com/avc-cache/avc/lib/avc"
)

func testClassMap(t *testing.T) *ClassMap {
	t.Helper()
	cm, err := ParseClassMap([]byte(sampleClassMap))
	if err != nil {
		t.Fatalf("ParseClassMap: %v", err)
	}
	return cm
}

func TestServerComputeAVNoRuleDeniesEverything(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddContext(1, "user_u:user_r:source_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := s.AddContext(2, "user_u:user_r:target_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}

	avd, ops, err := s.ComputeAV(1, 2, 1)
	if err != nil {
		t.Fatalf("ComputeAV: %v", err)
	}
	if avd.Allowed != 0 || ops != nil {
		t.Fatalf("ComputeAV with no rule = %+v, %v; want empty decision, nil ops", avd, ops)
	}
}

func TestServerComputeAVMatchesRegisteredRule(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddContext(1, "user_u:user_r:source_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := s.AddContext(2, "user_u:user_r:target_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := s.AddRule("source_t", "target_t", "file", []string{"read", "write"}, []string{"write"}, nil, false); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	avd, ops, err := s.ComputeAV(1, 2, 1)
	if err != nil {
		t.Fatalf("ComputeAV: %v", err)
	}
	if avd.Allowed != 0b011 {
		t.Fatalf("avd.Allowed = %b, want 0b011", avd.Allowed)
	}
	if avd.AuditAllow != 0b010 {
		t.Fatalf("avd.AuditAllow = %b, want 0b010", avd.AuditAllow)
	}
	if ops != nil {
		t.Fatalf("ops = %v, want nil (no operation rules registered)", ops)
	}
}

func TestServerComputeAVUnknownSIDDeniesEverything(t *testing.T) {
	s := NewServer(testClassMap(t))
	avd, ops, err := s.ComputeAV(99, 100, 1)
	if err != nil {
		t.Fatalf("ComputeAV with unregistered SIDs: %v", err)
	}
	if avd.Allowed != 0 || ops != nil {
		t.Fatalf("ComputeAV with unregistered SIDs = %+v, %v; want empty decision", avd, ops)
	}
}

func TestServerAddRuleRejectsUnknownPermission(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddRule("a", "b", "file", []string{"nope"}, nil, nil, false); err == nil {
		t.Fatalf("AddRule with an unknown permission name: want error")
	}
}

func TestServerComputeOperationMatchesRegisteredOperationRule(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddContext(1, "user_u:user_r:source_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := s.AddContext(2, "user_u:user_r:target_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := s.AddRule("source_t", "target_t", "file", []string{"read"}, nil, nil, false); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if err := s.AddOperationRule("source_t", "target_t", "file", 5, []uint8{42}, nil, nil); err != nil {
		t.Fatalf("AddOperationRule: %v", err)
	}

	_, ops, err := s.ComputeAV(1, 2, 1)
	if err != nil {
		t.Fatalf("ComputeAV: %v", err)
	}
	if ops == nil {
		t.Fatalf("ComputeAV ops = nil, want a seeded OperationNode declaring type 5 computable")
	}

	decision, err := s.ComputeOperation(1, 2, 1, 5)
	if err != nil {
		t.Fatalf("ComputeOperation: %v", err)
	}
	if !decision.IsAllowed(42) {
		t.Fatalf("ComputeOperation decision does not allow operation number 42")
	}
}

func TestServerAddOperationRuleRequiresExistingRule(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddOperationRule("a", "b", "file", 1, nil, nil, nil); err == nil {
		t.Fatalf("AddOperationRule without a prior AddRule: want error")
	}
}

func TestServerSIDToContextRoundTrips(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddContext(7, "user_u:user_r:source_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	got, err := s.SIDToContext(7)
	if err != nil {
		t.Fatalf("SIDToContext: %v", err)
	}
	if got != "user_u:user_r:source_t" {
		t.Fatalf("SIDToContext = %q, want user_u:user_r:source_t", got)
	}
}

func TestServerSIDToContextUnknownSID(t *testing.T) {
	s := NewServer(testClassMap(t))
	if _, err := s.SIDToContext(42); err == nil {
		t.Fatalf("SIDToContext for an unregistered SID: want error")
	}
}

func TestServerEnforcingDefaultsTrueAndIsSettable(t *testing.T) {
	s := NewServer(testClassMap(t))
	if !s.Enforcing() {
		t.Fatalf("Enforcing() default = false, want true")
	}
	s.SetEnforcing(false)
	if s.Enforcing() {
		t.Fatalf("Enforcing() after SetEnforcing(false) = true")
	}
}

func TestServerBumpSeqnoIsMonotonicAndFeedsComputeAV(t *testing.T) {
	s := NewServer(testClassMap(t))
	if err := s.AddContext(1, "user_u:user_r:source_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := s.AddContext(2, "user_u:user_r:target_t"); err != nil {
		t.Fatalf("AddContext: %v", err)
	}

	first := s.BumpSeqno()
	second := s.BumpSeqno()
	if second != first+1 {
		t.Fatalf("BumpSeqno() sequence = %d, %d; want consecutive", first, second)
	}

	avd, _, err := s.ComputeAV(1, 2, 1)
	if err != nil {
		t.Fatalf("ComputeAV: %v", err)
	}
	if avd.Seqno != second {
		t.Fatalf("avd.Seqno = %d, want current seqno %d", avd.Seqno, second)
	}
}

var _ avc.SecurityServer = (*Server)(nil)
