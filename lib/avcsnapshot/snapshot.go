// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package avcsnapshot defines the wire format cmd/avcd's debug server
// exposes at /debug/snapshot.cbor and cmd/avc-top polls: a structural
// dump of a [avc.Cache]'s shape, CBOR-encoded and then LZ4-compressed
// for cheap, frequent polling.
package avcsnapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/codec"
)

// Snapshot is a point-in-time structural view of a Cache: its
// aggregate counters plus the per-bucket occupancy breakdown, for
// tooling that wants to render a heatmap rather than just totals.
type Snapshot struct {
	ActiveCount    int64  `cbor:"active_count"`
	PolicySeqno    uint32 `cbor:"policy_seqno"`
	BucketsUsed    int    `cbor:"buckets_used"`
	BucketsTotal   int    `cbor:"buckets_total"`
	LongestChain   int    `cbor:"longest_chain"`
	Lookups        uint64 `cbor:"lookups"`
	Misses         uint64 `cbor:"misses"`
	Allocations    uint64 `cbor:"allocations"`
	Reclaims       uint64 `cbor:"reclaims"`
	PendingReclaim int    `cbor:"pending_reclaim"`

	// Occupancy holds each bucket's current chain length, in bucket
	// order.
	Occupancy []int `cbor:"occupancy"`
}

// New captures a Snapshot of cache's current state.
func New(cache *avc.Cache) Snapshot {
	s := cache.Stats()
	return Snapshot{
		ActiveCount:    s.Entries,
		PolicySeqno:    cache.PolicySeqno(),
		BucketsUsed:    s.BucketsUsed,
		BucketsTotal:   s.BucketsTotal,
		LongestChain:   s.LongestChain,
		Lookups:        s.Lookups,
		Misses:         s.Misses,
		Allocations:    s.Allocations,
		Reclaims:       s.Reclaims,
		PendingReclaim: s.PendingReclaim,
		Occupancy:      cache.BucketOccupancy(),
	}
}

// Encode renders snap as CBOR and then LZ4-block-compresses it. The
// wire format is a 4-byte little-endian uncompressed length followed
// by the LZ4 block (or, if the block compressor judged the input
// incompressible, a length of 0 followed by the raw CBOR bytes), so a
// reader never has to guess a decompression buffer size.
func Encode(snap Snapshot) ([]byte, error) {
	encoded, err := codec.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("avcsnapshot: encoding: %w", err)
	}

	bound := lz4.CompressBlockBound(len(encoded))
	compressed := make([]byte, 4+bound)
	binary.LittleEndian.PutUint32(compressed[:4], uint32(len(encoded)))

	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(encoded, compressed[4:])
	if err != nil {
		return nil, fmt.Errorf("avcsnapshot: lz4 compressing: %w", err)
	}
	if n == 0 {
		raw := make([]byte, 4+len(encoded))
		binary.LittleEndian.PutUint32(raw[:4], 0)
		copy(raw[4:], encoded)
		return raw, nil
	}

	return compressed[:4+n], nil
}

// Decode reverses Encode.
func Decode(data []byte) (Snapshot, error) {
	if len(data) < 4 {
		return Snapshot{}, fmt.Errorf("avcsnapshot: payload too short: %d bytes", len(data))
	}
	uncompressedLen := binary.LittleEndian.Uint32(data[:4])

	var encoded []byte
	if uncompressedLen == 0 {
		encoded = data[4:]
	} else {
		encoded = make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(data[4:], encoded)
		if err != nil {
			return Snapshot{}, fmt.Errorf("avcsnapshot: lz4 decompressing: %w", err)
		}
		if uint32(n) != uncompressedLen {
			return Snapshot{}, fmt.Errorf("avcsnapshot: lz4 decompressing: got %d bytes, want %d", n, uncompressedLen)
		}
	}

	var snap Snapshot
	if err := codec.Unmarshal(encoded, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("avcsnapshot: decoding: %w", err)
	}
	return snap, nil
}
