// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command avc-top is a terminal dashboard for a running avcd instance.
// It polls /debug/snapshot.cbor on an interval and renders the
// bucket-occupancy heatmap and hit/miss/reclaim counters live, the way
// top renders process statistics.
package main
