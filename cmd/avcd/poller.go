// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/avcss"
	"github.com/avc-cache/avc/lib/clock"
	"github.com/avc-cache/avc/lib/cron"
)

// rotatingServer implements avc.SecurityServer by forwarding every
// call to whichever *avcss.Server is currently installed. Cache.New
// takes a SecurityServer once at construction time, but policy
// reload needs to swap the backing Server wholesale (a fresh
// ClassMap, a fresh rule set) without reconstructing the Cache — this
// indirection is what makes that possible.
type rotatingServer struct {
	current atomic.Pointer[avcss.Server]
}

func newRotatingServer(initial *avcss.Server) *rotatingServer {
	r := &rotatingServer{}
	r.current.Store(initial)
	return r
}

func (r *rotatingServer) server() *avcss.Server { return r.current.Load() }

func (r *rotatingServer) ComputeAV(ssid, tsid avc.SID, tclass avc.Class) (avc.AvDecision, *avc.OperationNode, error) {
	return r.server().ComputeAV(ssid, tsid, tclass)
}

func (r *rotatingServer) ComputeOperation(ssid, tsid avc.SID, tclass avc.Class, opType uint8) (avc.OperationDecision, error) {
	return r.server().ComputeOperation(ssid, tsid, tclass, opType)
}

func (r *rotatingServer) SIDToContext(sid avc.SID) (string, error) {
	return r.server().SIDToContext(sid)
}

func (r *rotatingServer) Enforcing() bool {
	return r.server().Enforcing()
}

var _ avc.SecurityServer = (*rotatingServer)(nil)

// policyPoller watches the configured class-map and rules files for
// content changes on a cron schedule. When either changes, it parses
// a fresh avcss.Server from them, swaps it into the rotatingServer
// backing the cache, bumps the policy sequence number, and calls
// Cache.SSReset to drive the reset protocol.
type policyPoller struct {
	classMapPath string
	rulesPath    string
	clock        clock.Clock
	log          *slog.Logger

	cache *avc.Cache
	rot   *rotatingServer

	lastDigest  string
	lastChecked atomic.Int64 // UnixNano, written by Run/CheckAndReload, read by the debug server.
}

func newPolicyPoller(classMapPath, rulesPath string, c clock.Clock, logger *slog.Logger, cache *avc.Cache, rot *rotatingServer) *policyPoller {
	p := &policyPoller{
		classMapPath: classMapPath,
		rulesPath:    rulesPath,
		clock:        c,
		log:          logger,
		cache:        cache,
		rot:          rot,
	}
	p.lastDigest = p.digest()
	return p
}

// digest hashes the current contents of both watched files so a
// reload is only triggered by an actual content change, not merely a
// touched mtime.
func (p *policyPoller) digest() string {
	h := sha256.New()
	for _, path := range []string{p.classMapPath, p.rulesPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Run blocks, waking on schedule's cron expression until ctx is
// canceled. Each due tick calls CheckAndReload once.
func (p *policyPoller) Run(ctx context.Context, schedule cron.Schedule) {
	for {
		next, err := schedule.Next(p.clock.Now())
		if err != nil {
			p.log.Error("avcd: policy poller cannot compute next run", "error", err)
			return
		}

		wait := next.Sub(p.clock.Now())
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(wait):
		}

		if err := p.CheckAndReload(); err != nil {
			p.log.Error("avcd: policy reload failed", "error", err)
		}
	}
}

// CheckAndReload reloads policy if either watched file's content has
// changed since the last check. Exported for an admin-triggered
// reload outside the cron schedule; the debug server's /stats
// endpoint reports the seqno this last installed.
func (p *policyPoller) CheckAndReload() error {
	p.lastChecked.Store(p.clock.Now().UnixNano())

	digest := p.digest()
	if digest == p.lastDigest {
		return nil
	}
	p.lastDigest = digest

	classMap, err := avcss.LoadClassMapFile(p.classMapPath)
	if err != nil {
		return err
	}

	newServer := avcss.NewServer(classMap)
	newServer.SetEnforcing(p.rot.server().Enforcing())
	if err := loadPolicyFile(p.rulesPath, newServer); err != nil {
		return err
	}

	// Seed from the outgoing server's seqno so the new one continues
	// the same monotonic sequence instead of restarting at 0: every
	// reload must yield a strictly greater seqno than the policy it
	// replaces, or a pre-reset racer computed against the superseded
	// policy could carry the same seqno as the new one and slip past
	// insert's stale-seqno check during the reset window.
	newServer.SetSeqno(p.rot.server().Seqno())
	seqno := newServer.BumpSeqno()
	p.rot.current.Store(newServer)

	p.log.Info("avcd: policy reloaded", "seqno", seqno)
	return p.cache.SSReset(seqno)
}

// lastCheckTime returns the time of the most recent CheckAndReload
// call, or the zero time if none has run yet.
func (p *policyPoller) lastCheckTime() time.Time {
	nanos := p.lastChecked.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
