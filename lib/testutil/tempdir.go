// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// TempClassMapDir creates a temporary directory for a test's class-map
// and policy fixture files. The directory is removed when the test
// completes.
func TempClassMapDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("", "avc-classmap-*")
	if err != nil {
		t.Fatalf("creating class map directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}
