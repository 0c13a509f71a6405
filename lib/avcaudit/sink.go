// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcaudit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/avcss"
)

// DefaultQueueCapacity is the default size of the non-blocking emit
// queue.
const DefaultQueueCapacity = 1024

// Config configures a Sink. Every field is optional: a zero-value
// Config produces a Sink that renders into an in-memory ring only,
// with no file persistence.
type Config struct {
	// ClassMap renders permission and class names. Nil falls back to
	// hexadecimal bit/index rendering.
	ClassMap *avcss.ClassMap

	// Resolve renders a SID as a context string for scontext/tcontext.
	// Nil falls back to a bare decimal SID.
	Resolve ContextResolver

	// RingCapacity is the number of rendered lines /audit/tail can
	// retain. Zero uses DefaultRingCapacity.
	RingCapacity int

	// Dir, if non-empty, enables file persistence: rendered lines are
	// buffered and flushed as rotating zstd-compressed segments under
	// this directory.
	Dir string

	// MaxSegmentBytes is the uncompressed buffer size that triggers a
	// segment flush. Zero uses DefaultMaxSegmentBytes.
	MaxSegmentBytes int

	// RecipientKeys, if non-empty, seals each flushed segment to these
	// age1... recipients so contexts at rest are confidential.
	RecipientKeys []string

	// QueueCapacity bounds EmitNonBlocking's in-memory queue. Zero
	// uses DefaultQueueCapacity.
	QueueCapacity int

	Logger *slog.Logger
}

// Sink implements avc.AuditSink.
type Sink struct {
	classMap *avcss.ClassMap
	resolve  ContextResolver
	ring     *ring
	log      *slog.Logger

	writeMu sync.Mutex
	segment *segmentWriter // nil when Config.Dir was empty.

	queue  chan avc.AuditRecord
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSink constructs a Sink from cfg.
func NewSink(cfg Config) (*Sink, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var seg *segmentWriter
	if cfg.Dir != "" {
		var err error
		seg, err = newSegmentWriter(cfg.Dir, cfg.MaxSegmentBytes, cfg.RecipientKeys)
		if err != nil {
			return nil, err
		}
	}

	queueCapacity := cfg.QueueCapacity
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		classMap: cfg.ClassMap,
		resolve:  cfg.Resolve,
		ring:     newRing(cfg.RingCapacity),
		log:      logger,
		segment:  seg,
		queue:    make(chan avc.AuditRecord, queueCapacity),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

// run drains the non-blocking queue in the background, writing each
// record through the same path Emit uses synchronously.
func (s *Sink) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case record := <-s.queue:
			if err := s.write(record); err != nil {
				s.log.Warn("avcaudit: background write failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Emit implements avc.AuditSink: it writes synchronously, so a nil
// return guarantees the record is ring-buffered and, if a segment
// directory is configured, included in the next flushed segment.
func (s *Sink) Emit(record avc.AuditRecord) error {
	return s.write(record)
}

// EmitNonBlocking implements avc.AuditSink: it enqueues record for
// the background writer without blocking, returning
// avc.ErrTryAgainNonBlocking if the queue is full.
func (s *Sink) EmitNonBlocking(record avc.AuditRecord) error {
	select {
	case s.queue <- record:
		return nil
	default:
		return avc.ErrTryAgainNonBlocking
	}
}

func (s *Sink) write(record avc.AuditRecord) error {
	line := render(record, s.classMap, s.resolve)
	s.ring.Append(line)

	if s.segment == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.segment.Append(line); err != nil {
		return fmt.Errorf("avcaudit: %w", err)
	}
	return nil
}

// Tail returns up to n of the most recently rendered audit lines,
// oldest first, for the debug server's /audit/tail endpoint.
func (s *Sink) Tail(n int) []string {
	return s.ring.Tail(n)
}

// Flush forces any buffered, not-yet-rotated segment data to disk.
// Useful before shutdown so a partially filled segment isn't lost.
func (s *Sink) Flush() error {
	if s.segment == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.segment.Flush()
}

// Close stops the background writer goroutine and flushes any
// pending segment data. Close does not drain records still sitting
// in the non-blocking queue; callers that need every enqueued record
// persisted should stop calling EmitNonBlocking first and wait for
// the queue to empty.
func (s *Sink) Close() error {
	s.cancel()
	<-s.done
	return s.Flush()
}

var _ avc.AuditSink = (*Sink)(nil)
