// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcss

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/avc-cache/avc/lib/avc"
)

// Context is a parsed "user:role:type" security context, the
// standard three-field form SID -> context resolution renders for
// audit output. Type enforcement rules match on SourceType and
// TargetType only; User and Role are carried for SIDToContext
// rendering.
type Context struct {
	User string
	Role string
	Type string
}

func (c Context) String() string {
	return c.User + ":" + c.Role + ":" + c.Type
}

func parseContext(s string) (Context, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Context{}, fmt.Errorf("avcss: context %q must have the form user:role:type", s)
	}
	for _, p := range parts {
		if p == "" {
			return Context{}, fmt.Errorf("avcss: context %q has an empty field", s)
		}
	}
	return Context{User: parts[0], Role: parts[1], Type: parts[2]}, nil
}

// ruleKey identifies one type-enforcement rule by source type, target
// type, and object class.
type ruleKey struct {
	sourceType string
	targetType string
	class      avc.Class
}

type rule struct {
	allowed    avc.Perm
	auditAllow avc.Perm
	auditDeny  avc.Perm
	permissive bool
	operations map[uint8]avc.OperationDecision
}

// Server is a ClassMap-backed, type-enforcement-style [avc.SecurityServer].
// SIDs are opaque handles the caller registers against a context via
// AddContext; ComputeAV and ComputeOperation resolve a miss by
// looking up the rule registered for the pair's (source type, target
// type, class).
//
// A Server is safe for concurrent use. It exists to give cmd/avcd a
// runnable security server; it holds policy in memory and is not
// meant to survive a restart, reflecting the Design Notes decision
// that this demonstration server may be stateful across calls.
type Server struct {
	classMap *ClassMap

	mu       sync.RWMutex
	contexts map[avc.SID]Context
	rules    map[ruleKey]*rule

	enforcing atomic.Bool
	seqno     atomic.Uint32
}

// NewServer constructs a Server backed by classMap. classMap may be
// nil; SIDToContext and rule lookups still work, but audit rendering
// that needs permission names will fall back to numeric bits.
func NewServer(classMap *ClassMap) *Server {
	s := &Server{
		classMap: classMap,
		contexts: make(map[avc.SID]Context),
		rules:    make(map[ruleKey]*rule),
	}
	s.enforcing.Store(true)
	return s
}

// SetEnforcing sets whether ComputeAV's caller should treat a denial
// as enforced. Flipping this at runtime is how a policy reload can
// move the whole server between permissive and enforcing modes.
func (s *Server) SetEnforcing(enforcing bool) {
	s.enforcing.Store(enforcing)
}

// Enforcing implements avc.SecurityServer.
func (s *Server) Enforcing() bool {
	return s.enforcing.Load()
}

// Seqno returns the current policy version.
func (s *Server) Seqno() uint32 {
	return s.seqno.Load()
}

// BumpSeqno increments and returns the new policy version. The
// caller is responsible for then calling Cache.SSReset with the
// returned value.
func (s *Server) BumpSeqno() uint32 {
	return s.seqno.Add(1)
}

// SetSeqno seeds the policy version counter. Used when replacing one
// Server with another on reload, so the replacement's first
// BumpSeqno continues the same monotonic sequence rather than
// restarting from zero.
func (s *Server) SetSeqno(seqno uint32) {
	s.seqno.Store(seqno)
}

// AddContext registers sid against a "user:role:type" context string.
func (s *Server) AddContext(sid avc.SID, context string) error {
	ctx, err := parseContext(context)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.contexts[sid] = ctx
	s.mu.Unlock()
	return nil
}

// SIDToContext implements avc.SecurityServer.
func (s *Server) SIDToContext(sid avc.SID) (string, error) {
	s.mu.RLock()
	ctx, ok := s.contexts[sid]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("avcss: no context registered for SID %d", sid)
	}
	return ctx.String(), nil
}

// AddRule registers a coarse access-vector rule for every SID whose
// type is sourceType against every SID whose type is targetType, for
// the named object class. allowed, auditAllow, and auditDeny are
// permission names resolved through the server's ClassMap; className
// must exist in it.
func (s *Server) AddRule(sourceType, targetType, className string, allowed, auditAllow, auditDeny []string, permissive bool) error {
	class, ok := s.classMap.ClassByName(className)
	if !ok {
		return fmt.Errorf("avcss: unknown class %q", className)
	}

	r := &rule{permissive: permissive}
	var err error
	if r.allowed, err = s.resolvePerms(class, allowed); err != nil {
		return err
	}
	if r.auditAllow, err = s.resolvePerms(class, auditAllow); err != nil {
		return err
	}
	if r.auditDeny, err = s.resolvePerms(class, auditDeny); err != nil {
		return err
	}

	key := ruleKey{sourceType: sourceType, targetType: targetType, class: class}
	s.mu.Lock()
	existing, hasExisting := s.rules[key]
	if hasExisting {
		r.operations = existing.operations
	}
	s.rules[key] = r
	s.mu.Unlock()
	return nil
}

func (s *Server) resolvePerms(class avc.Class, names []string) (avc.Perm, error) {
	var perms avc.Perm
	for _, name := range names {
		bit, ok := s.classMap.PermBit(class, name)
		if !ok {
			return 0, fmt.Errorf("avcss: class %q has no permission %q", s.classMap.ClassName(class), name)
		}
		perms |= 1 << bit
	}
	return perms, nil
}

// AddOperationRule registers a fine-grained OperationDecision for one
// operation type within a (sourceType, targetType, className) rule.
// The rule must already exist (via AddRule) before attaching an
// operation to it, since ComputeAV's typeMask is derived from the
// operation types attached to the rule at lookup time.
func (s *Server) AddOperationRule(sourceType, targetType, className string, opType uint8, allowed, auditAllow, dontAudit []uint8) error {
	class, ok := s.classMap.ClassByName(className)
	if !ok {
		return fmt.Errorf("avcss: unknown class %q", className)
	}

	key := ruleKey{sourceType: sourceType, targetType: targetType, class: class}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[key]
	if !ok {
		return fmt.Errorf("avcss: no rule registered for %s->%s class %q; call AddRule first", sourceType, targetType, className)
	}
	if r.operations == nil {
		r.operations = make(map[uint8]avc.OperationDecision)
	}

	decision := avc.OperationDecision{Type: opType}
	for _, n := range allowed {
		decision.SetAllowed(n)
	}
	for _, n := range auditAllow {
		decision.SetAuditAllow(n)
	}
	for _, n := range dontAudit {
		decision.SetDontAudit(n)
	}
	r.operations[opType] = decision
	return nil
}

// ComputeAV implements avc.SecurityServer. An (ssid, tsid) pair with
// no registered context, or a (sourceType, targetType, class) triple
// with no registered rule, resolves to the empty decision: nothing
// allowed, nothing audited. This mirrors the real security server's
// behavior for an access vector with no matching rule in policy.
func (s *Server) ComputeAV(ssid, tsid avc.SID, tclass avc.Class) (avc.AvDecision, *avc.OperationNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sctx, ok := s.contexts[ssid]
	if !ok {
		return avc.AvDecision{Seqno: s.seqno.Load()}, nil, nil
	}
	tctx, ok := s.contexts[tsid]
	if !ok {
		return avc.AvDecision{Seqno: s.seqno.Load()}, nil, nil
	}

	r, ok := s.rules[ruleKey{sourceType: sctx.Type, targetType: tctx.Type, class: tclass}]
	if !ok {
		return avc.AvDecision{Seqno: s.seqno.Load()}, nil, nil
	}

	avd := avc.AvDecision{
		Allowed:    r.allowed,
		AuditAllow: r.auditAllow,
		AuditDeny:  r.auditDeny,
		Seqno:      s.seqno.Load(),
	}
	if r.permissive {
		avd.Flags |= avc.FlagPermissive
	}

	if len(r.operations) == 0 {
		return avd, nil, nil
	}
	types := make([]uint8, 0, len(r.operations))
	for t := range r.operations {
		types = append(types, t)
	}
	return avd, avc.NewOperationNode(types...), nil
}

// ComputeOperation implements avc.SecurityServer. It is only called
// for an operation type the corresponding ComputeAV call already
// declared computable, so a missing rule or context here indicates
// the rule set changed between the two calls (e.g. a concurrent
// policy reload) rather than a normal miss.
func (s *Server) ComputeOperation(ssid, tsid avc.SID, tclass avc.Class, opType uint8) (avc.OperationDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sctx, ok := s.contexts[ssid]
	if !ok {
		return avc.OperationDecision{}, fmt.Errorf("avcss: no context registered for source SID %d", ssid)
	}
	tctx, ok := s.contexts[tsid]
	if !ok {
		return avc.OperationDecision{}, fmt.Errorf("avcss: no context registered for target SID %d", tsid)
	}

	r, ok := s.rules[ruleKey{sourceType: sctx.Type, targetType: tctx.Type, class: tclass}]
	if !ok {
		return avc.OperationDecision{}, fmt.Errorf("avcss: no rule for %s->%s class %d", sctx.Type, tctx.Type, tclass)
	}
	decision, ok := r.operations[opType]
	if !ok {
		return avc.OperationDecision{}, fmt.Errorf("avcss: no operation rule for type %d", opType)
	}
	return decision, nil
}
