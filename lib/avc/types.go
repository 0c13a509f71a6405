// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// SID is an opaque security identifier for a subject or object. The
// cache never interprets its value; it only hashes and compares it.
type SID uint32

// WildSID matches any SID in a callback filter.
const WildSID SID = 0xffffffff

// Class is a 16-bit object-class tag indexing a static class map
// (lib/avcss.ClassMap). The cache never interprets its value beyond
// using it as part of a lookup key.
type Class uint16

// Perm is a permission bitmap: one bit per permission within a class,
// up to 32 permissions per class.
type Perm uint32

// Flags carries AvDecision metadata bits.
type Flags uint32

// FlagPermissive marks a decision computed while the subject's domain
// is in permissive mode: denials are logged but not enforced, and the
// decision protocol self-patches the cache entry on a subsequent GRANT
// once the access is observed.
const FlagPermissive Flags = 1 << 0

// AvDecision is the coarse per-(ssid,tsid,tclass) result: three
// 32-bit permission bitmaps, a flags word, and the policy-version
// seqno that produced it.
type AvDecision struct {
	Allowed    Perm
	AuditAllow Perm
	AuditDeny  Perm
	Flags      Flags
	Seqno      uint32
}

// specifiedBits names which of OperationDecision's three bitmaps are
// meaningful, as a small bitset rather than three separate bools so
// it mirrors the C bitfield this is modeled on.
type specifiedBits uint8

const (
	specifiedAllowed    specifiedBits = 1 << 0
	specifiedAuditAllow specifiedBits = 1 << 1
	specifiedDontAudit  specifiedBits = 1 << 2
)

func (s specifiedBits) has(bit specifiedBits) bool { return s&bit != 0 }

// OperationDecision holds fine-grained decisions for a single
// operation type t ∈ [0,255]. Each of Allowed, AuditAllow, and
// DontAudit is a 256-bit set, one bit per operation number; Specified
// says which of the three are meaningful.
type OperationDecision struct {
	Type       uint8
	Specified  specifiedBits
	Allowed    bitset256
	AuditAllow bitset256
	DontAudit  bitset256
}

// clone returns a deep copy of d. OperationDecision values are never
// shared across nodes; every node that holds one owns
// its own copy.
func (d OperationDecision) clone() OperationDecision {
	return d
}

// OperationNode is the per-entry lazy table of fine-grained decisions.
// typeMask records which operation types this entry's class declares
// as computable — set up front by ComputeAV for types the security
// server can answer, and again by withDecision once a decision is
// actually attached — independent of whether decisions still holds an
// entry for that type. It never shrinks for the node's lifetime, so a
// type once declared computable is never re-probed with ComputeAV.
type OperationNode struct {
	typeMask  bitset256
	decisions []OperationDecision
}

// Len returns the number of OperationDecisions attached to the node.
func (n *OperationNode) Len() int {
	if n == nil {
		return 0
	}
	return len(n.decisions)
}

// find returns the OperationDecision for the given type and whether
// it was found. The list is unordered and typically short (most
// entries touch a handful of operation types), so linear scan is
// correct and not worth
// indexing.
func (n *OperationNode) find(opType uint8) (OperationDecision, bool) {
	if n == nil {
		return OperationDecision{}, false
	}
	for _, d := range n.decisions {
		if d.Type == opType {
			return d, true
		}
	}
	return OperationDecision{}, false
}

// clone returns a deep copy of the operation node: a new typeMask
// value (bitset256 is a value type, so this copies by assignment) and
// a new decisions slice with each entry cloned.
func (n *OperationNode) clone() *OperationNode {
	if n == nil {
		return nil
	}
	clone := &OperationNode{typeMask: n.typeMask}
	if len(n.decisions) > 0 {
		clone.decisions = make([]OperationDecision, len(n.decisions))
		for i, d := range n.decisions {
			clone.decisions[i] = d.clone()
		}
	}
	return clone
}

// NewOperationNode constructs the seed OperationNode a SecurityServer
// implementation returns from ComputeAV: computableTypes marks which
// operation types this class can answer (typeMask), with no decisions
// attached yet — each is computed lazily on its first HasOperation
// call. Passing no types is equivalent to returning nil: the class
// carries no fine-grained table at all.
func NewOperationNode(computableTypes ...uint8) *OperationNode {
	if len(computableTypes) == 0 {
		return nil
	}
	n := &OperationNode{}
	for _, t := range computableTypes {
		n.typeMask.set(int(t))
	}
	return n
}

// SetAllowed sets the Allowed bit for operation number in d and marks
// Allowed as specified. Used by SecurityServer implementations
// building the OperationDecision ComputeOperation returns.
func (d *OperationDecision) SetAllowed(number uint8) {
	d.Specified |= specifiedAllowed
	d.Allowed.set(int(number))
}

// SetAuditAllow sets the AuditAllow bit for operation number in d and
// marks AuditAllow as specified.
func (d *OperationDecision) SetAuditAllow(number uint8) {
	d.Specified |= specifiedAuditAllow
	d.AuditAllow.set(int(number))
}

// SetDontAudit sets the DontAudit bit for operation number in d and
// marks DontAudit as specified.
func (d *OperationDecision) SetDontAudit(number uint8) {
	d.Specified |= specifiedDontAudit
	d.DontAudit.set(int(number))
}

// IsAllowed reports whether d specifies Allowed and number's bit is
// set in it.
func (d OperationDecision) IsAllowed(number uint8) bool {
	return d.Specified.has(specifiedAllowed) && d.Allowed.has(int(number))
}

// IsAuditAllow reports whether d specifies AuditAllow and number's
// bit is set in it.
func (d OperationDecision) IsAuditAllow(number uint8) bool {
	return d.Specified.has(specifiedAuditAllow) && d.AuditAllow.has(int(number))
}

// IsDontAudit reports whether d specifies DontAudit and number's bit
// is set in it.
func (d OperationDecision) IsDontAudit(number uint8) bool {
	return d.Specified.has(specifiedDontAudit) && d.DontAudit.has(int(number))
}

// withDecision returns a clone of n with decision appended (or
// replacing an existing entry of the same type), and typeMask updated
// to mark decision.Type as computed. n is never mutated.
func (n *OperationNode) withDecision(decision OperationDecision) *OperationNode {
	clone := n.clone()
	if clone == nil {
		clone = &OperationNode{}
	}
	clone.typeMask.set(int(decision.Type))

	for i, existing := range clone.decisions {
		if existing.Type == decision.Type {
			clone.decisions[i] = decision
			return clone
		}
	}
	clone.decisions = append(clone.decisions, decision)
	return clone
}
