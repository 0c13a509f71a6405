// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/avcaudit"
	"github.com/avc-cache/avc/lib/avcsnapshot"
)

// newDebugServer builds the introspection HTTP server: a small,
// read-only API for operators and for cmd/avc-top to poll. None of
// these endpoints are part of lib/avc's contract — they exist only so
// the cache has something observable to run against.
func newDebugServer(addr string, cache *avc.Cache, sink *avcaudit.Sink, poller *policyPoller) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", handleStats(cache, poller))
	mux.HandleFunc("/stats.html", handleStatsHTML(cache, poller))
	mux.HandleFunc("/debug/snapshot.cbor", handleSnapshot(cache))
	mux.HandleFunc("/audit/tail", handleAuditTail(sink))

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// handleStats renders the hash-table shape and counters as plain text,
// in the same shape as the original's /selinux/avc/hash_stats file.
func handleStats(cache *avc.Cache, poller *policyPoller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "policy seqno: %d\n", cache.PolicySeqno())
		fmt.Fprintf(w, "last policy check: %s\n", poller.lastCheckTime().Format(time.RFC3339))
		w.Write([]byte(cache.HashStatsText()))

		s := cache.Stats()
		fmt.Fprintf(w, "lookups: %d\nmisses: %d\nallocations: %d\nreclaims: %d\npending reclaim: %d\n",
			s.Lookups, s.Misses, s.Allocations, s.Reclaims, s.PendingReclaim)
	}
}

// statsMarkdownSource renders the same information as handleStats, but
// as markdown source for handleStatsHTML to convert to HTML.
func statsMarkdownSource(cache *avc.Cache, poller *policyPoller) string {
	s := cache.Stats()
	return fmt.Sprintf(`# avcd cache statistics

| | |
|---|---|
| policy seqno | %d |
| last policy check | %s |
| entries | %d |
| buckets used | %d / %d |
| longest chain | %d |
| lookups | %d |
| misses | %d |
| allocations | %d |
| reclaims | %d |
| pending reclaim | %d |
`,
		cache.PolicySeqno(),
		poller.lastCheckTime().Format(time.RFC3339),
		s.Entries, s.BucketsUsed, s.BucketsTotal, s.LongestChain,
		s.Lookups, s.Misses, s.Allocations, s.Reclaims, s.PendingReclaim,
	)
}

// handleStatsHTML renders the same statistics as handleStats, but as
// an HTML table via goldmark, for a human looking at this in a
// browser rather than with curl.
func handleStatsHTML(cache *avc.Cache, poller *policyPoller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := statsMarkdownSource(cache, poller)

		var body bytes.Buffer
		if err := goldmark.Convert([]byte(source), &body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html><meta charset=\"utf-8\"><title>avcd stats</title>%s", body.String())
	}
}

// handleSnapshot serves the structural snapshot avc-top polls for its
// bucket-occupancy heatmap: CBOR-encoded, LZ4-block-compressed (see
// snapshot.go).
func handleSnapshot(cache *avc.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := avcsnapshot.Encode(avcsnapshot.New(cache))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}
}

// handleAuditTail serves the most recently rendered audit lines.
// ?n=N bounds the number of lines returned; the default is the sink's
// full retained ring.
func handleAuditTail(sink *avcaudit.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if raw := r.URL.Query().Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid n", http.StatusBadRequest)
				return
			}
			n = parsed
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, line := range sink.Tail(n) {
			fmt.Fprintln(w, line)
		}
	}
}
