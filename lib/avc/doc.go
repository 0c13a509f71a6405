// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package avc implements an access vector cache: an in-process,
// read-mostly cache of authorization decisions keyed by a subject SID,
// an object SID, and an object class, backed by an external
// [SecurityServer] that computes decisions the cache hasn't seen
// before.
//
// [New] constructs a [Cache] from a [Config]; SecurityServer is the
// only required field. The cache is a fixed 512-bucket hash table
// ([NSlots]); each bucket is a singly linked chain of nodes guarded by
// its own mutex, so two updates to different buckets never contend and
// a reader never blocks on a writer. Readers never take a lock at all:
// [Cache.Lookup], [Cache.HasPermNoAudit], [Cache.HasPermFlags], and
// [Cache.HasOperation] walk bucket chains directly, relying on a
// quiescent-state reclamation scheme (see reclaim.go) to guarantee a
// node is never freed while a reader might still hold a pointer to it.
//
// Every mutation replaces rather than edits a node: [Cache.insert] and
// updateNode swap in a freshly allocated node and hand the old version
// to the reclaimer; evict unlinks a node and hands it to the reclaimer
// without a replacement. This is what
// lets lookups stay lock-free — a concurrent reader either sees the old
// node or the new one, never a half-written one.
//
// [Cache.HasPermNoAudit] and [Cache.HasPermFlags] answer coarse
// allow/deny questions; [Cache.HasOperation] additionally consults the
// per-entry [OperationNode] for fine-grained per-command decisions,
// computed lazily via SecurityServer.ComputeOperation and cached for
// the life of the entry. A denial is always enforced when the call
// carries [CallStrict]. Without it, a denial is enforced only when
// SecurityServer.Enforcing reports true and the entry's
// [FlagPermissive] bit is clear; otherwise the access is allowed and
// the entry is self-patched via a GRANT update so a repeat call
// doesn't re-resolve the same denial.
//
// [Cache.SSReset] is the policy-reload entry point: it flushes every
// bucket, runs every registered [Callback] subscribed to [EventReset],
// and advances the cache's policy sequence number. [Cache.insert]
// refuses any candidate decision computed against a sequence number
// older than the most recent reset, so a slow compute racing a reload
// can never repopulate the cache with stale policy.
package avc
