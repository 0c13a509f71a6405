// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avc-cache/avc/lib/avcsnapshot"
)

// snapshotClient polls an avcd instance's debug server for structural
// snapshots.
type snapshotClient struct {
	baseURL string
	http    *http.Client
}

func newSnapshotClient(baseURL string) *snapshotClient {
	return &snapshotClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// fetch retrieves and decodes one snapshot from /debug/snapshot.cbor.
func (c *snapshotClient) fetch(ctx context.Context) (avcsnapshot.Snapshot, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/debug/snapshot.cbor", nil)
	if err != nil {
		return avcsnapshot.Snapshot{}, err
	}

	response, err := c.http.Do(request)
	if err != nil {
		return avcsnapshot.Snapshot{}, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return avcsnapshot.Snapshot{}, fmt.Errorf("fetching snapshot: server returned %s", response.Status)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return avcsnapshot.Snapshot{}, fmt.Errorf("reading snapshot body: %w", err)
	}

	return avcsnapshot.Decode(body)
}
