// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import (
	"fmt"
	"sync"
	"testing"
)

// fakeServer is a SecurityServer whose answers are fixed in advance by
// the test, with call counters so tests can assert on-miss computation
// happens exactly once per key.
type fakeServer struct {
	mu sync.Mutex

	avds         map[avcKey]AvDecision
	ops          map[avcKey]*OperationNode
	operations   map[avcOpKey]OperationDecision
	enforcing    bool
	computeAVN   map[avcKey]int
	computeOpsN  map[avcOpKey]int
	computeAVErr error
}

type avcKey struct {
	ssid, tsid SID
	tclass     Class
}

type avcOpKey struct {
	avcKey
	opType uint8
}

func newFakeServer(enforcing bool) *fakeServer {
	return &fakeServer{
		avds:        make(map[avcKey]AvDecision),
		ops:         make(map[avcKey]*OperationNode),
		operations:  make(map[avcOpKey]OperationDecision),
		enforcing:   enforcing,
		computeAVN:  make(map[avcKey]int),
		computeOpsN: make(map[avcOpKey]int),
	}
}

func (f *fakeServer) setAV(ssid, tsid SID, tclass Class, avd AvDecision, ops *OperationNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avds[avcKey{ssid, tsid, tclass}] = avd
	f.ops[avcKey{ssid, tsid, tclass}] = ops
}

func (f *fakeServer) setOperation(ssid, tsid SID, tclass Class, opType uint8, decision OperationDecision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operations[avcOpKey{avcKey{ssid, tsid, tclass}, opType}] = decision
}

func (f *fakeServer) ComputeAV(ssid, tsid SID, tclass Class) (AvDecision, *OperationNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := avcKey{ssid, tsid, tclass}
	f.computeAVN[key]++
	if f.computeAVErr != nil {
		return AvDecision{}, nil, f.computeAVErr
	}
	avd, ok := f.avds[key]
	if !ok {
		return AvDecision{}, nil, fmt.Errorf("fakeServer: no AvDecision configured for %+v", key)
	}
	return avd, f.ops[key], nil
}

func (f *fakeServer) ComputeOperation(ssid, tsid SID, tclass Class, opType uint8) (OperationDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := avcOpKey{avcKey{ssid, tsid, tclass}, opType}
	f.computeOpsN[key]++
	decision, ok := f.operations[key]
	if !ok {
		return OperationDecision{}, fmt.Errorf("fakeServer: no OperationDecision configured for %+v", key)
	}
	return decision, nil
}

func (f *fakeServer) SIDToContext(sid SID) (string, error) {
	return fmt.Sprintf("sid:%d", sid), nil
}

func (f *fakeServer) Enforcing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enforcing
}

func (f *fakeServer) setEnforcing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enforcing = v
}

func (f *fakeServer) computeAVCount(ssid, tsid SID, tclass Class) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computeAVN[avcKey{ssid, tsid, tclass}]
}

func (f *fakeServer) computeOperationCount(ssid, tsid SID, tclass Class, opType uint8) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computeOpsN[avcOpKey{avcKey{ssid, tsid, tclass}, opType}]
}

// fakeAuditSink records every emitted record for inspection.
type fakeAuditSink struct {
	mu         sync.Mutex
	records    []AuditRecord
	refuseOnce bool
}

func (s *fakeAuditSink) Emit(record AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *fakeAuditSink) EmitNonBlocking(record AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuseOnce {
		s.refuseOnce = false
		return ErrTryAgainNonBlocking
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeAuditSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newTestCache(t *testing.T, ss SecurityServer) *Cache {
	t.Helper()
	c, err := New(Config{SecurityServer: ss})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
