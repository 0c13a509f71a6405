// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command avcd is a runnable demonstration daemon around lib/avc. It
// wires a class-map-backed lib/avcss.Server in as the cache's
// SecurityServer, a lib/avcaudit.Sink in as its AuditSink, serves a
// debug/introspection HTTP API, and polls the configured policy files
// on a cron schedule to drive Cache.SSReset when they change.
//
// None of this is part of lib/avc's contract — a real deployment
// supplies its own SecurityServer adapter over an actual policy
// engine. avcd exists so the cache has a runnable home in this
// repository.
package main
