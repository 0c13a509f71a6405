// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avc-cache/avc/lib/clock"
)

// reclaimer defers freeing unlinked nodes until no reader can hold a
// stale pointer to them. It implements the quiescent-state scheme
// named in the cache's design notes: readers increment a shared
// counter on entry to a reader section and decrement it on exit; any
// instant at which that counter reads zero is a quiescent point, and
// every node retired before that instant is safe to drop.
//
// This generalizes the generation-plus-reader-count technique used to
// reclaim ring buffer blocks without a global lock: instead of one
// counter per block, the whole cache shares one counter, because
// unlike a block ring, the cache's grace period isn't tied to a single
// resource being reused.
type reclaimer struct {
	activeReaders atomic.Int64

	mu      sync.Mutex
	retired []retiredNode

	clock clock.Clock
}

// retiredNode is a node that has been unlinked from its bucket chain
// but may still be visible to a reader that began its section before
// the unlink.
type retiredNode struct {
	node      *avcNode
	retiredAt time.Time
}

func newReclaimer(c clock.Clock) *reclaimer {
	return &reclaimer{clock: c}
}

// readerSection tracks one in-flight reader. EnterReaderSection and
// its matching Exit delimit the window during which no node
// visible to a reader that has entered may be freed until it exits.
type readerSection struct {
	r *reclaimer
}

// EnterReaderSection begins a reader critical section. The caller must
// call Exit exactly once, typically via defer.
func (r *reclaimer) EnterReaderSection() readerSection {
	r.activeReaders.Add(1)
	return readerSection{r: r}
}

// Exit ends the reader critical section. After the last concurrent
// reader that overlapped a node's retirement exits, the node becomes
// eligible for reclamation the next time the active count reaches
// zero.
func (s readerSection) Exit() {
	s.r.activeReaders.Add(-1)
}

// retire hands an unlinked node to the reclaimer. It is not freed
// immediately: a reader that entered its section before this call may
// still hold a pointer to it.
func (r *reclaimer) retire(node *avcNode) {
	r.mu.Lock()
	r.retired = append(r.retired, retiredNode{node: node, retiredAt: r.clock.Now()})
	r.mu.Unlock()

	// Opportunistic reclamation: cheap to check, and most call sites
	// (insert, update, evict) are already off any reader's hot path.
	r.tryReclaim()
}

// tryReclaim frees every node retired before the most recent instant
// at which no reader was active. It never blocks.
func (r *reclaimer) tryReclaim() {
	if r.activeReaders.Load() != 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.retired) == 0 {
		return
	}
	// The zero reading above is a quiescent point: any reader whose
	// section overlapped an earlier retirement has since exited, or it
	// would still hold the count above zero. Everything retired before
	// this call is therefore safe to drop.
	r.retired = r.retired[:0]
}

// drain blocks until every node retired so far has been reclaimed.
// Flush does not call it, and the decision and insertion paths never
// call it, since they must never spin waiting on reclamation to make
// progress.
func (r *reclaimer) drain() {
	for {
		r.mu.Lock()
		pending := len(r.retired)
		r.mu.Unlock()
		if pending == 0 {
			return
		}
		if r.activeReaders.Load() == 0 {
			r.tryReclaim()
			return
		}
		runtime.Gosched()
	}
}

// pendingCount returns the number of nodes awaiting reclamation. Used
// by stats reporting and tests.
func (r *reclaimer) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retired)
}

// oldestRetiredAge returns how long the longest-waiting retired node
// has been pending, using the reclaimer's clock so tests can drive it
// deterministically with a fake clock. Returns zero if nothing is
// pending.
func (r *reclaimer) oldestRetiredAge() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.retired) == 0 {
		return 0
	}
	return r.clock.Since(r.retired[0].retiredAt)
}
