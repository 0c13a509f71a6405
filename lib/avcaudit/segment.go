// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcaudit

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/avc-cache/avc/lib/sealed"
)

// DefaultMaxSegmentBytes is the default uncompressed size at which a
// segment is flushed to disk and rotated.
const DefaultMaxSegmentBytes = 4 << 20 // 4 MiB

// segmentWriter accumulates rendered audit lines in memory and
// flushes them as one zstd-compressed (optionally age-sealed)
// segment file once the accumulated plaintext reaches maxBytes. Each
// line is tagged with a content digest and a correlation ID before
// being buffered, so tamper detection and external log correlation
// survive compression and encryption.
//
// Not safe for concurrent use; callers serialize access (Sink does so
// via its write-path mutex).
type segmentWriter struct {
	dir        string
	maxBytes   int
	recipients []string

	buf   bytes.Buffer
	index int
}

func newSegmentWriter(dir string, maxBytes int, recipients []string) (*segmentWriter, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSegmentBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("avcaudit: creating segment directory %s: %w", dir, err)
	}
	for _, key := range recipients {
		if err := sealed.ParsePublicKey(key); err != nil {
			return nil, fmt.Errorf("avcaudit: %w", err)
		}
	}
	return &segmentWriter{dir: dir, maxBytes: maxBytes, recipients: recipients}, nil
}

// Append buffers one rendered line, tagged with a correlation ID and
// a content digest, flushing the segment to disk if the buffer has
// reached maxBytes.
func (sw *segmentWriter) Append(line string) error {
	digest := blake3.New()
	digest.Write([]byte(line))

	record := fmt.Sprintf("%s\t%s\t%s\n", uuid.New().String(), hex.EncodeToString(digest.Sum(nil)), line)
	sw.buf.WriteString(record)

	if sw.buf.Len() >= sw.maxBytes {
		return sw.Flush()
	}
	return nil
}

// Flush compresses and writes out the current buffer as one segment
// file, then resets the buffer. A no-op when the buffer is empty.
func (sw *segmentWriter) Flush() error {
	if sw.buf.Len() == 0 {
		return nil
	}

	compressed := zstdEncoder.EncodeAll(sw.buf.Bytes(), nil)

	name := fmt.Sprintf("audit-%06d.log.zst", sw.index)
	if len(sw.recipients) > 0 {
		sealedText, err := sealed.Encrypt(compressed, sw.recipients)
		if err != nil {
			return fmt.Errorf("avcaudit: sealing segment: %w", err)
		}
		compressed = []byte(sealedText)
		name += ".age"
	}

	path := filepath.Join(sw.dir, name)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("avcaudit: writing segment %s: %w", path, err)
	}

	sw.index++
	sw.buf.Reset()
	return nil
}

var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("avcaudit: zstd encoder initialization failed: " + err.Error())
	}
}
