// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avc

// AddCallback registers a one-shot, never-unregistered invalidation
// callback. events is a bitmask of 1<<Event. ssid, tsid, tclass and
// perms are stored with the entry and passed back to the callback;
// SSReset does not match them against any key. The callback list
// is append-only and mutated only at init, so SSReset can walk it
// without any lock beyond the one guarding the append itself.
func (c *Cache) AddCallback(cb Callback, events uint32, ssid, tsid SID, tclass Class, perms Perm) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()

	c.callbacks = append(c.callbacks, callbackEntry{
		callback: cb,
		events:   events,
		ssid:     ssid,
		tsid:     tsid,
		tclass:   tclass,
		perms:    perms,
	})
}

// SSReset runs the reset protocol: flush, invoke every
// RESET-subscribed callback, then bump latest_seqno to the monotonic
// max of its current value and seqno. The first non-zero callback
// error is returned, but every callback still runs — a failing
// subscriber never blocks the others from observing the reset.
func (c *Cache) SSReset(seqno uint32) error {
	c.Flush()

	var first error
	c.callbackMu.Lock()
	callbacks := c.callbacks
	c.callbackMu.Unlock()

	for _, entry := range callbacks {
		if !entry.matchesEvent(EventReset) {
			continue
		}
		if err := entry.callback(EventReset, entry.ssid, entry.tsid, entry.tclass, entry.perms); err != nil && first == nil {
			first = err
		}
	}

	c.seqnoMu.Lock()
	if seqno > c.latestSeqno {
		c.latestSeqno = seqno
	}
	c.seqnoMu.Unlock()

	return first
}
