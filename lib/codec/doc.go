// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the cache daemon's standard CBOR encoding
// configuration.
//
// The debug snapshot endpoint and any future binary protocol between
// avcd and its tooling use CBOR rather than JSON: snapshots are
// polled frequently by cmd/avc-top and are compressed with lz4 before
// being written to the response body, so a compact, deterministic
// binary encoding matters more than human readability. JSON remains
// the format for the text/HTML stats endpoints, which are meant to be
// read directly.
//
// This package provides the shared CBOR encoding and decoding modes so
// every caller encodes identically without duplicating configuration.
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which matters for
// snapshot content hashing.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Struct fields use `cbor` tags; this package has no JSON-fallback
// consumers, so there is no `json`/`cbor` tag dichotomy to document.
package codec
