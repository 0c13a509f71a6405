// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/avc-cache/avc/lib/clock"
)

// NSlots is the fixed number of hash buckets. The spec calls this
// N_SLOTS; it is not configurable, since the hash function and the
// evictor's rotating hint both assume this exact modulus.
const NSlots = 512

// DefaultCacheThreshold is the node count above which the evictor
// runs on the next insert.
const DefaultCacheThreshold = 512

// DefaultReclaimBatch is the maximum number of nodes one evictor pass
// unlinks.
const DefaultReclaimBatch = 16

// SecurityServer is the external collaborator that computes decisions
// the cache doesn't have cached. It is the cache's only source of
// truth; every cached value is an accelerator for a prior answer from
// this interface.
type SecurityServer interface {
	// ComputeAV computes a fresh coarse decision for (ssid, tsid,
	// tclass). The returned OperationNode, if non-nil, seeds the new
	// cache entry's lazily populated operation table; it is deep-copied
	// by the cache, so the implementation may reuse or discard its
	// return value afterward.
	ComputeAV(ssid, tsid SID, tclass Class) (AvDecision, *OperationNode, error)

	// ComputeOperation computes fine-grained decisions for a single
	// operation type.
	ComputeOperation(ssid, tsid SID, tclass Class, opType uint8) (OperationDecision, error)

	// SIDToContext renders a SID as a human-readable context string,
	// for audit records only. The cache never uses the result for
	// decisions.
	SIDToContext(sid SID) (string, error)

	// Enforcing reports whether denials are currently enforced. When
	// false, any denial from a call without CallStrict is reported by
	// the decision protocol as allowed, and the cache entry is
	// self-patched.
	Enforcing() bool
}

// AuditSink is the external collaborator that records audit-worthy
// decisions. The cache renders nothing itself; it hands the sink a
// fully populated AuditRecord (see lib/avcaudit).
type AuditSink interface {
	// Emit records an audit-worthy decision, blocking if necessary.
	Emit(record AuditRecord) error

	// EmitNonBlocking records an audit-worthy decision without
	// blocking. Returns ErrTryAgainNonBlocking if it cannot do so
	// immediately (e.g. a bounded queue is full).
	EmitNonBlocking(record AuditRecord) error
}

// AuditRecord is the data the decision protocol hands to an AuditSink.
// It mirrors the fields the original audit line format needs
// (scontext, tcontext, tclass, requested/denied/granted permissions,
// permissive flag) without depending on lib/avcaudit's rendering
// logic.
type AuditRecord struct {
	SSID       SID
	TSID       SID
	Class      Class
	Requested  Perm
	Denied     Perm
	Granted    Perm
	Permissive bool
	Seqno      uint32

	// Extra carries the calling AuditData's Extra map verbatim. Nil
	// unless the caller supplied one.
	Extra map[string]string
}

// Callback is invoked by SSReset for every registered entry whose
// Events mask includes EventReset, after the cache has been flushed
// and before latest_seqno is updated.
type Callback func(event Event, ssid, tsid SID, tclass Class, perms Perm) error

// Event identifies why update or a callback fired.
type Event int

const (
	EventGrant Event = iota
	EventRevoke
	EventTryRevoke
	EventAuditAllowEnable
	EventAuditAllowDisable
	EventAuditDenyEnable
	EventAuditDenyDisable
	EventAddOperation
	EventReset
)

// callbackEntry is one append-only registration from AddCallback.
type callbackEntry struct {
	callback Callback
	events   uint32 // bitmask of 1<<Event
	ssid     SID
	tsid     SID
	tclass   Class
	perms    Perm
}

func (e callbackEntry) matchesEvent(event Event) bool {
	return e.events&(1<<uint(event)) != 0
}

func (e callbackEntry) matchesFilter(ssid, tsid SID, tclass Class) bool {
	if e.ssid != WildSID && e.ssid != ssid {
		return false
	}
	if e.tsid != WildSID && e.tsid != tsid {
		return false
	}
	if e.tclass != 0xffff && e.tclass != tclass {
		return false
	}
	return true
}

// bucket is one hash slot: a writer-locked, singly linked chain of
// nodes. Readers traverse head without taking mu; only chain surgery
// (insert, replace, unlink) takes it. head is an atomic.Pointer so a
// lock-free Load has a happens-before edge with the writer's Store —
// without it, a reader has no guarantee of observing a fully
// constructed node, only a non-nil pointer to one.
type bucket struct {
	mu   sync.Mutex
	head atomic.Pointer[avcNode]
}

// cacheStats holds the cache's atomic counters. Stats reports lookups,
// misses, allocations and reclaims; frees is never incremented or
// reported, and HashStatsText prints none of them. The original keeps
// these per-CPU to avoid cache-line contention; this implementation uses plain
// atomics, an accepted simplification recorded in DESIGN.md.
type cacheStats struct {
	lookups     atomic.Uint64
	misses      atomic.Uint64
	allocations atomic.Uint64
	reclaims    atomic.Uint64
	frees       atomic.Uint64
}

// Config configures a Cache. SecurityServer is required; everything
// else has a zero-value-safe default applied by New.
type Config struct {
	SecurityServer SecurityServer
	AuditSink      AuditSink
	Clock          clock.Clock
	Logger         *slog.Logger
	CacheThreshold int
	ReclaimBatch   int
}

// Cache is an access vector cache: a
// fixed 512-bucket hash table of AvcNodes, with per-bucket writer
// locks, lock-free readers, deferred reclamation, and approximate-LRU
// eviction.
type Cache struct {
	buckets [NSlots]bucket

	activeCount atomic.Int64
	lruHint     atomic.Uint32

	seqnoMu     sync.Mutex
	latestSeqno uint32

	cacheThreshold int64
	reclaimBatch   int

	reclaim *reclaimer
	stats   cacheStats

	ss    SecurityServer
	audit AuditSink
	clock clock.Clock
	log   *slog.Logger

	callbackMu sync.Mutex // held only by AddCallback, never by readers
	callbacks  []callbackEntry

	disabled atomic.Bool
}

// New constructs a Cache. SecurityServer must be non-nil; it is the
// cache's only source of truth for decisions it hasn't seen before.
func New(cfg Config) (*Cache, error) {
	if cfg.SecurityServer == nil {
		return nil, fmt.Errorf("avc: Config.SecurityServer is required")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.CacheThreshold
	if threshold <= 0 {
		threshold = DefaultCacheThreshold
	}
	batch := cfg.ReclaimBatch
	if batch <= 0 {
		batch = DefaultReclaimBatch
	}

	return &Cache{
		cacheThreshold: int64(threshold),
		reclaimBatch:   batch,
		reclaim:        newReclaimer(c),
		ss:             cfg.SecurityServer,
		audit:          cfg.AuditSink,
		clock:          c,
		log:            logger,
	}, nil
}

// hashKey computes the bucket hash:
// h(ssid,tsid,tclass) = (ssid XOR (tsid<<2) XOR (tclass<<4)) mod N_SLOTS.
func hashKey(ssid, tsid SID, tclass Class) int {
	h := uint32(ssid) ^ (uint32(tsid) << 2) ^ (uint32(tclass) << 4)
	return int(h % NSlots)
}

// ActiveCount returns the number of linked nodes. Exposed for tests
// asserting eviction and threshold boundary behavior, and for the
// stats endpoint.
func (c *Cache) ActiveCount() int64 {
	return c.activeCount.Load()
}

// PolicySeqno returns the latest policy version the cache has
// observed via SSReset.
func (c *Cache) PolicySeqno() uint32 {
	c.seqnoMu.Lock()
	defer c.seqnoMu.Unlock()
	return c.latestSeqno
}

// Disable flushes the cache and marks it unusable. Per the design
// notes' open question (a), behavior of further operations after
// Disable is deliberately undefined by the source this was distilled
// from; this implementation chooses to reject them with ErrDisabled
// rather than silently compute against torn-down state.
func (c *Cache) Disable() {
	c.Flush()
	c.disabled.Store(true)
}
